// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package location answers one-shot position requests on top of the geobus providers.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/geobus"
	"github.com/wneessen/incident-ar/internal/logger"
)

const (
	// DefaultTimeout is the time a fix request may take before it fails.
	DefaultTimeout = time.Second * 15
	// DefaultHighAccuracyMeters is the worst accuracy a high-accuracy request accepts.
	DefaultHighAccuracyMeters = geobus.AccuracyZip

	subscriberBuffer = 32
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrNoProviders      = errors.New("at least one geolocation provider is required")
)

// Service resolves the current position of the device. Every request starts its own
// provider tracking and stops it again before returning, so no watch outlives a request.
type Service struct {
	bus                *geobus.GeoBus
	providers          []geobus.Provider
	logger             *logger.Logger
	highAccuracyMeters float64
	requests           atomic.Uint64
}

// New returns a Service using the given providers. A non-positive highAccuracyMeters selects
// DefaultHighAccuracyMeters.
func New(log *logger.Logger, providers []geobus.Provider, highAccuracyMeters float64) (*Service, error) {
	if log == nil {
		return nil, geobus.ErrLoggerRequired
	}
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	bus, err := geobus.New(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create geobus: %w", err)
	}
	if highAccuracyMeters <= 0 {
		highAccuracyMeters = DefaultHighAccuracyMeters
	}
	return &Service{
		bus:                bus,
		providers:          providers,
		logger:             log,
		highAccuracyMeters: highAccuracyMeters,
	}, nil
}

// CurrentFix returns the first position that is produced after the call started. Cached
// positions are never returned. With highAccuracy set, positions worse than the configured
// accuracy are ignored. The request fails with ErrPermissionDenied once every provider refused
// access, and with ErrTimeout when timeout elapses first. A timeout after a refusal without any
// position is reported as ErrPermissionDenied.
func (s *Service) CurrentFix(ctx context.Context, highAccuracy bool, timeout time.Duration) (geo.Coordinate, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()
	key := fmt.Sprintf("fix-%d", s.requests.Add(1))

	results, unsubscribe := s.bus.Subscribe(key, subscriberBuffer)
	trackCtx, cancelTrack := context.WithCancel(ctx)
	tracking := make(chan struct{})
	go func() {
		defer close(tracking)
		s.bus.NewOrchestrator(s.providers).Track(trackCtx, key)
	}()
	defer func() {
		cancelTrack()
		<-tracking
		unsubscribe()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	denied := make(map[string]struct{})
	sawPosition := false
	for {
		select {
		case <-ctx.Done():
			return geo.Coordinate{}, ctx.Err()
		case <-timer.C:
			if len(denied) > 0 && !sawPosition {
				return geo.Coordinate{}, ErrPermissionDenied
			}
			return geo.Coordinate{}, ErrTimeout
		case r := <-results:
			if r.Failed() {
				s.logger.Debug("location provider failed", slog.String("source", r.Source), logger.Err(r.Err))
				if !errors.Is(r.Err, geobus.ErrPermissionDenied) {
					continue
				}
				denied[r.Source] = struct{}{}
				if len(denied) >= len(s.providers) {
					return geo.Coordinate{}, ErrPermissionDenied
				}
				continue
			}
			if r.At.Before(start) {
				continue
			}
			sawPosition = true
			if highAccuracy && r.AccuracyMeters > s.highAccuracyMeters {
				s.logger.Debug("ignoring inaccurate position", slog.String("source", r.Source),
					slog.Float64("accuracy", r.AccuracyMeters))
				continue
			}
			s.logger.Debug("position acquired", slog.String("source", r.Source),
				slog.String("position", r.Coordinate.String()), slog.Float64("accuracy", r.AccuracyMeters))
			return r.Coordinate, nil
		}
	}
}
