// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/geobus"
	"github.com/wneessen/incident-ar/internal/gpspoll"
)

const (
	DefaultHost = "localhost"
	DefaultPort = "2947"
	name        = "gpsd"
	pollTimeout = time.Second * 5
)

type GeolocationGPSDProvider struct {
	name     string
	client   *gpspoll.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (gpspoll.Fix, error)
}

// NewGeolocationGPSDProvider returns a provider that polls the gpsd daemon at host:port.
// Empty values fall back to the gpsd defaults.
func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}
	provider := &GeolocationGPSDProvider{
		name:   name,
		client: gpspoll.New(host, port),
		period: time.Second * 2,
		ttl:    time.Second * 30,
	}
	provider.locateFn = provider.poll
	return provider
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream polls gpsd periodically and emits a result for every fix with at least a 2D
// mode. Failed polls are emitted as failed results so callers can tell "no gpsd" from
// "no fix yet".
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			fix, err := p.locateFn(ctx)
			if err != nil {
				if !p.emit(ctx, out, geobus.Result{Key: key, Source: p.name, Err: err}) {
					return
				}
				continue
			}
			raw, ok := fix.Coordinate()
			if !ok || p.isStale(fix) {
				continue
			}

			coord := geo.Coordinate{
				Lat: geobus.Truncate(raw.Lat, geobus.TruncPrecision),
				Lon: geobus.Truncate(raw.Lon, geobus.TruncPrecision),
			}
			if !state.HasChanged(coord) {
				continue
			}
			state.Update(coord)
			if !p.emit(ctx, out, p.createResult(key, coord, fix.Acc)) {
				return
			}
		}
	}()
	return out
}

func (p *GeolocationGPSDProvider) emit(ctx context.Context, out chan<- geobus.Result, r geobus.Result) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- r:
		return true
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, coord geo.Coordinate, acc float64) geobus.Result {
	return geobus.Result{
		Key:            key,
		Coordinate:     coord,
		AccuracyMeters: acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

// isStale reports whether gpsd handed out a cached fix older than the result TTL.
func (p *GeolocationGPSDProvider) isStale(fix gpspoll.Fix) bool {
	return !fix.Time.IsZero() && time.Since(fix.Time) > p.ttl
}

func (p *GeolocationGPSDProvider) poll(ctx context.Context) (gpspoll.Fix, error) {
	ctxPoll, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()
	fix, err := p.client.Poll(ctxPoll)
	if err != nil {
		return fix, fmt.Errorf("failed to poll gpsd: %w", err)
	}
	return fix, nil
}
