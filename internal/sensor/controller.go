// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package sensor acquires the location fix, the camera stream and the orientation samples
// the overlay needs, one permission at a time.
package sensor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/incident-ar/internal/camera"
	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/location"
	"github.com/wneessen/incident-ar/internal/logger"
	"github.com/wneessen/incident-ar/internal/orientation"
	"github.com/wneessen/incident-ar/internal/vartype"
)

var (
	ErrDisposed          = errors.New("sensor controller is disposed")
	ErrInProgress        = errors.New("acquisition already in progress")
	ErrAbandoned         = errors.New("acquisition abandoned")
	ErrNotGranted        = errors.New("sensors not granted")
	ErrMissingDependency = errors.New("location, camera and orientation services are required")
	ErrLoggerRequired    = errors.New("logger is required")
)

// LocationService resolves a single position fix.
type LocationService interface {
	CurrentFix(ctx context.Context, highAccuracy bool, timeout time.Duration) (geo.Coordinate, error)
}

// CameraService opens video streams.
type CameraService interface {
	OpenVideoStream(ctx context.Context, facing camera.Facing) (*camera.Stream, error)
}

// OrientationSensor delivers orientation events after access was granted.
type OrientationSensor interface {
	RequestAccess(ctx context.Context) error
	Subscribe() (<-chan orientation.Event, func())
}

// Config holds the settings of a Controller.
type Config struct {
	Capability      orientation.Capability
	LocationTimeout time.Duration
}

// Controller drives the acquisition sequence and owns the acquired resources: the location
// fix, the camera stream and the latest orientation sample. Sample listeners are called
// synchronously from the orientation stream, one sample at a time, and never after Teardown
// returned. Listeners must not call Teardown.
type Controller struct {
	location    LocationService
	camera      CameraService
	orientation OrientationSensor
	config      Config
	logger      *logger.Logger

	// dispatch serializes sample delivery with teardown
	dispatch sync.Mutex

	mu              sync.Mutex
	generation      uint64
	phase           Phase
	err             *AcquisitionError
	compassErr      *AcquisitionError
	fix             geo.Coordinate
	stream          *camera.Stream
	latest          vartype.Slot[orientation.Sample]
	listening       bool
	unsubscribe     func()
	cancel          context.CancelFunc
	stateListeners  []func(State)
	pending         []State
	sampleListeners []func(orientation.Sample)
}

// New returns a Controller in the NotStarted phase.
func New(loc LocationService, cam CameraService, orient OrientationSensor, conf Config, log *logger.Logger) (*Controller, error) {
	if loc == nil || cam == nil || orient == nil {
		return nil, ErrMissingDependency
	}
	if log == nil {
		return nil, ErrLoggerRequired
	}
	if conf.LocationTimeout <= 0 {
		conf.LocationTimeout = location.DefaultTimeout
	}
	if conf.Capability == "" {
		conf.Capability = orientation.CapabilityImplicit
	}
	return &Controller{
		location:    loc,
		camera:      cam,
		orientation: orient,
		config:      conf,
		logger:      log,
		phase:       PhaseNotStarted,
	}, nil
}

// OnStateChange registers fn to be called after every state transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.unlock()
	c.stateListeners = append(c.stateListeners, fn)
}

// OnSample registers fn to be called for every accepted orientation sample.
func (c *Controller) OnSample(fn func(orientation.Sample)) {
	c.mu.Lock()
	defer c.unlock()
	c.sampleListeners = append(c.sampleListeners, fn)
}

// Capability returns the orientation capability the controller was configured with.
func (c *Controller) Capability() orientation.Capability {
	return c.config.Capability
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.unlock()
	return c.stateLocked()
}

// Location returns the acquired fix. It is only available while granted.
func (c *Controller) Location() (geo.Coordinate, bool) {
	c.mu.Lock()
	defer c.unlock()
	return c.fix, c.phase == PhaseGranted
}

// LatestSample returns the most recent orientation sample.
func (c *Controller) LatestSample() (orientation.Sample, bool) {
	c.mu.Lock()
	defer c.unlock()
	return c.latest.Load()
}

// Stream returns the camera stream while granted.
func (c *Controller) Stream() *camera.Stream {
	c.mu.Lock()
	defer c.unlock()
	return c.stream
}

// Acquire runs the acquisition sequence: a fresh high-accuracy location fix, then the rear
// camera, then the orientation stream. Each step only starts after the previous one succeeded.
// A failed step releases everything acquired so far and moves the controller to Failed.
// Calling Acquire again after a failure or while granted restarts the full sequence.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseDisposed:
		c.unlock()
		return ErrDisposed
	case PhaseRequestingLocation, PhaseRequestingCamera:
		c.unlock()
		return ErrInProgress
	}
	c.releaseLocked()
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.err = nil
	c.phase = PhaseRequestingLocation
	c.notifyLocked()
	c.unlock()
	defer cancel()

	c.logger.Debug("requesting location", slog.Uint64("generation", gen))
	fix, err := c.location.CurrentFix(ctx, true, c.config.LocationTimeout)
	if err != nil {
		return c.fail(ctx, gen, StageLocation, err)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.unlock()
		return ErrAbandoned
	}
	c.phase = PhaseRequestingCamera
	c.notifyLocked()
	c.unlock()

	c.logger.Debug("requesting camera", slog.Uint64("generation", gen))
	stream, err := c.camera.OpenVideoStream(ctx, camera.FacingEnvironment)
	if err != nil {
		// The pending fix is dropped together with the failed attempt
		return c.fail(ctx, gen, StageCamera, err)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.unlock()
		if closeErr := stream.Close(); closeErr != nil {
			c.logger.Error("failed to release abandoned camera stream", logger.Err(closeErr))
		}
		return ErrAbandoned
	}
	c.fix = fix
	c.stream = stream
	c.cancel = nil
	c.phase = PhaseGranted
	if !c.config.Capability.RequiresGesture() {
		c.listenLocked(gen)
	}
	c.notifyLocked()
	c.unlock()

	c.logger.Info("sensors granted", slog.String("position", fix.String()),
		slog.String("capability", string(c.config.Capability)))
	return nil
}

// EnableCompass unlocks orientation samples on platforms that require a user gesture. It can
// be called again after a denial. On other platforms samples already flow and it returns nil.
func (c *Controller) EnableCompass(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseDisposed {
		c.unlock()
		return ErrDisposed
	}
	if c.phase != PhaseGranted {
		c.unlock()
		return ErrNotGranted
	}
	if c.listening {
		c.unlock()
		return nil
	}
	gen := c.generation
	c.unlock()

	err := c.orientation.RequestAccess(ctx)

	c.mu.Lock()
	defer c.unlock()
	if c.generation != gen {
		return ErrAbandoned
	}
	if err != nil {
		c.compassErr = classify(StageOrientation, err)
		c.notifyLocked()
		c.logger.Warn("orientation access failed", logger.Err(err))
		return c.compassErr
	}
	c.compassErr = nil
	if !c.listening {
		c.listenLocked(gen)
	}
	c.notifyLocked()
	return nil
}

// Teardown stops the orientation listener, releases the camera and abandons an in-flight
// acquisition. The controller is disposed afterwards. Only the first call has an effect.
func (c *Controller) Teardown() error {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if c.phase == PhaseDisposed {
		c.unlock()
		return nil
	}
	c.generation++
	err := c.releaseLocked()
	c.phase = PhaseDisposed
	c.notifyLocked()
	c.unlock()

	c.logger.Debug("sensor controller disposed")
	return err
}

// fail moves the attempt gen to Failed unless it was superseded or its context ended.
func (c *Controller) fail(ctx context.Context, gen uint64, stage Stage, err error) error {
	c.mu.Lock()
	defer c.unlock()
	if c.generation != gen {
		return ErrAbandoned
	}
	c.cancel = nil
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// The caller gave up, which is not a sensor failure
		c.phase = PhaseNotStarted
		c.notifyLocked()
		return err
	}
	c.err = classify(stage, err)
	c.phase = PhaseFailed
	c.notifyLocked()
	c.logger.Warn("sensor acquisition failed", slog.String("stage", string(stage)), logger.Err(err))
	return c.err
}

// releaseLocked frees every acquired resource exactly once.
func (c *Controller) releaseLocked() error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.listening = false
	c.latest.Clear()
	c.fix = geo.Coordinate{}
	c.compassErr = nil

	var err error
	if c.stream != nil {
		err = c.stream.Close()
		c.stream = nil
	}
	return err
}

func (c *Controller) listenLocked(gen uint64) {
	events, unsubscribe := c.orientation.Subscribe()
	c.unsubscribe = unsubscribe
	c.listening = true
	go c.consume(gen, events)
}

// consume applies orientation events of the attempt gen in arrival order.
func (c *Controller) consume(gen uint64, events <-chan orientation.Event) {
	for ev := range events {
		if !c.apply(gen, ev) {
			return
		}
	}
}

func (c *Controller) apply(gen uint64, ev orientation.Event) bool {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	if c.generation != gen || c.phase != PhaseGranted {
		c.unlock()
		return false
	}
	if ev.Err != nil {
		c.unlock()
		c.logger.Debug("dropping orientation sample", logger.Err(ev.Err))
		return true
	}
	first := c.latest.Store(ev.Sample)
	listeners := append([]func(orientation.Sample){}, c.sampleListeners...)
	if first {
		c.notifyLocked()
	}
	c.unlock()

	for _, fn := range listeners {
		fn(ev.Sample)
	}
	return true
}

// notifyLocked queues the current state for the state listeners. The queue is flushed by
// unlock once mu is released, so listeners may call back into the controller.
func (c *Controller) notifyLocked() {
	if len(c.stateListeners) == 0 {
		return
	}
	c.pending = append(c.pending, c.stateLocked())
}

// unlock releases mu and hands queued states to the state listeners in order.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	listeners := append([]func(State){}, c.stateListeners...)
	c.mu.Unlock()

	for _, state := range pending {
		for _, fn := range listeners {
			fn(state)
		}
	}
}

func (c *Controller) stateLocked() State {
	state := State{Phase: c.phase, Capability: c.config.Capability}
	switch c.phase {
	case PhaseGranted:
		state.CompassActive = c.latest.Filled()
		state.CompassEnabled = c.listening
		state.Err = c.compassErr
	case PhaseFailed:
		state.Err = c.err
	}
	return state
}
