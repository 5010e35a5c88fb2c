// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"

	"github.com/wneessen/incident-ar/internal/camera"
	"github.com/wneessen/incident-ar/internal/config"
	"github.com/wneessen/incident-ar/internal/geobus"
	"github.com/wneessen/incident-ar/internal/job"
	"github.com/wneessen/incident-ar/internal/location"
	"github.com/wneessen/incident-ar/internal/logger"
	"github.com/wneessen/incident-ar/internal/navigation"
	"github.com/wneessen/incident-ar/internal/orientation"
	"github.com/wneessen/incident-ar/internal/overlay"
	"github.com/wneessen/incident-ar/internal/presenter"
	"github.com/wneessen/incident-ar/internal/reports"
	"github.com/wneessen/incident-ar/internal/sensor"
	"github.com/wneessen/incident-ar/internal/server"
)

const (
	OutputClass      = "incident-ar"
	ErrorOutputClass = "error"

	refreshJobName  = "report_refresh_job"
	statusJobName   = "status_output_job"
	refreshTimeout  = 10 * time.Second
	acquireTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

type outputData struct {
	Text    string   `json:"text"`
	Tooltip string   `json:"tooltip"`
	Classes []string `json:"class"`
}

// Service wires the sensor controller, the overlay loop and the report store together and
// publishes the rendered frames.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	t          *spreak.Localizer
	presenter  *presenter.Presenter
	scheduler  gocron.Scheduler
	jobs       []*job.Job
	status     *job.Job
	output     io.Writer
	outputLock sync.Mutex
	SignalSrc  signalSource

	feed       *orientation.Feed
	reader     *orientation.DeviceReader
	controller *sensor.Controller
	loop       *overlay.Loop
	cache      *reports.CachedSource
	store      *reports.Store
	server     *server.Server
	closers    []io.Closer

	lastPhase sensor.Phase
	printed   bool
}

func New(conf *config.Config, log *logger.Logger, t *spreak.Localizer) (*Service, error) {
	if log == nil {
		return nil, geobus.ErrLoggerRequired
	}

	pres, err := presenter.New(conf, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	service := &Service{
		config:    conf,
		logger:    log,
		t:         t,
		presenter: pres,
		scheduler: scheduler,
		output:    os.Stdout,
		SignalSrc: stdLibSignalSource{},
		feed:      orientation.NewFeed(),
	}
	if err = service.wire(); err != nil {
		service.close()
		return nil, err
	}
	return service, nil
}

// wire creates the components and connects their callbacks.
func (s *Service) wire() error {
	providers, err := s.selectGeobusProviders()
	if err != nil {
		return fmt.Errorf("failed to create geobus orchestrator: %w", err)
	}
	loc, err := location.New(s.logger, providers, s.config.Overlay.HighAccuracyMeters)
	if err != nil {
		return fmt.Errorf("failed to create location service: %w", err)
	}

	capability, err := orientation.ParseCapability(s.config.Orientation.Capability)
	if err != nil {
		return err
	}
	if s.config.Orientation.Device != "" {
		s.reader = orientation.NewDeviceReader(s.config.Orientation.Device, s.feed, s.logger)
	}
	cam := camera.NewDevice(s.config.Camera.Device, s.config.Camera.FrontDevice)
	s.controller, err = sensor.New(loc, cam, orientation.NewSensor(s.feed, s.config.Orientation.Device),
		sensor.Config{Capability: capability, LocationTimeout: s.config.Overlay.LocationTimeout}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create sensor controller: %w", err)
	}

	s.loop, err = overlay.NewLoop(overlay.Config{
		RadiusMeters:  s.config.Overlay.RadiusMeters,
		FOVDegrees:    s.config.Overlay.FOVDegrees,
		ViewportWidth: s.config.Overlay.ViewportWidth,
	}, navigation.NewLauncher(s.config.Navigation.Opener, s.logger), s.logger)
	if err != nil {
		return fmt.Errorf("failed to create overlay: %w", err)
	}

	source, err := s.selectReportSource()
	if err != nil {
		return fmt.Errorf("failed to create report provider: %w", err)
	}
	if source != nil {
		s.cache = reports.NewCachedSource(source, s.config.Reports.CacheTTL)
		s.store, err = reports.NewStore(s.cache, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create report store: %w", err)
		}
		s.store.OnChange(s.loop.SetReports)
	}

	if s.config.Server.Listen != "" {
		s.server, err = server.New(s.controller, s.loop, s.presenter, s.feed, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create http interface: %w", err)
		}
	}

	s.controller.OnStateChange(s.applyState)
	s.controller.OnSample(s.loop.OnSample)
	s.loop.OnFrame(s.publishFrame)
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.store != nil {
		if err := s.createScheduledJob(ctx, s.config.Reports.RefreshInterval, s.refreshReports,
			refreshJobName); err != nil {
			return err
		}
	}
	s.status = job.New(statusJobName, s.config.Intervals.Status, s.printStatus)
	s.jobs = append(s.jobs, s.status)
	s.scheduler.Start()

	var wg sync.WaitGroup
	for _, j := range s.jobs {
		if j == nil {
			continue
		}
		wg.Go(func() { j.Start(ctx) })
	}
	if s.reader != nil {
		wg.Go(func() {
			if err := s.reader.Run(ctx); err != nil {
				s.logger.Error("orientation device reader stopped", logger.Err(err))
			}
		})
	}
	serverErr := make(chan error, 1)
	if s.server != nil {
		wg.Go(func() {
			if err := s.server.ListenAndServe(ctx, s.config.Server.Listen); err != nil {
				serverErr <- err
			}
		})
	}

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	wg.Go(func() {
		defer s.SignalSrc.Stop(sigChan)
		s.HandleSignals(ctx, sigChan)
	})

	wg.Go(func() { s.monitorSleepResume(ctx) })
	if s.store != nil {
		wg.Go(func() { s.refreshReports(ctx) })
	}
	wg.Go(func() { s.acquire(ctx) })

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		err = fmt.Errorf("failed to run http interface: %w", err)
	}
	cancel()

	if tdErr := s.controller.Teardown(); tdErr != nil {
		s.logger.Warn("failed to release camera cleanly", logger.Err(tdErr))
	}
	s.close()
	if shutErr := s.scheduler.Shutdown(); shutErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to shut down scheduler: %w", shutErr))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.logger.Warn("background tasks did not stop in time")
	}
	return err
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// acquire runs the acquisition sequence. Failures are reflected in the controller state.
func (s *Service) acquire(ctx context.Context) {
	ctxAcquire, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	if err := s.controller.Acquire(ctxAcquire); err != nil {
		s.logger.Warn("sensor acquisition failed", logger.Err(err))
		return
	}
	s.logger.Info(s.t.Get("camera and location acquired"))
}

// enableCompass starts the orientation stream on platforms that require a user gesture.
func (s *Service) enableCompass(ctx context.Context) {
	if err := s.controller.EnableCompass(ctx); err != nil {
		s.logger.Warn("failed to enable compass", logger.Err(err))
	}
}

func (s *Service) refreshReports(ctx context.Context) {
	if s.store == nil {
		return
	}
	ctxRefresh, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	if err := s.store.Refresh(ctxRefresh); err != nil {
		s.logger.Error("failed to refresh reports", logger.Err(err))
	}
}

// applyState hands a new controller state and the acquired position to the overlay.
func (s *Service) applyState(state sensor.State) {
	self, _ := s.controller.Location()
	s.logger.Debug("sensor state changed", slog.String("phase", state.Phase.String()))
	s.loop.SetState(state, self)
}

// publishFrame sends every frame to the websocket clients and prints frames that changed the
// marker set or the phase.
func (s *Service) publishFrame(frame overlay.Frame) {
	if s.server != nil {
		s.server.Broadcast(frame)
	}

	s.outputLock.Lock()
	changed := !s.printed || frame.State.Phase != s.lastPhase || len(frame.Added) > 0 || len(frame.Removed) > 0
	s.outputLock.Unlock()
	if changed {
		s.printFrame(frame)
	}
}

func (s *Service) printStatus(context.Context) {
	s.printFrame(s.loop.Frame())
}

func (s *Service) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("failed to close resource", logger.Err(err))
		}
	}
	s.closers = nil
}
