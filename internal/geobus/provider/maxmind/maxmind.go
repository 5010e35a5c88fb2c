// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package maxmind

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/geobus"
	"github.com/wneessen/incident-ar/internal/http"
)

const (
	// DefaultIPEndpoint answers with the public IP address of the caller.
	DefaultIPEndpoint = "https://api.ipify.org?format=json"
	lookupTimeout     = time.Second * 5
	name              = "maxmind"
)

var (
	ErrHTTPClientRequired = errors.New("http client is required")
	ErrNoLocation         = errors.New("no location for IP address in database")
)

// cityReader is the part of geoip2.Reader the provider needs.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// GeolocationMaxMindProvider resolves the public IP address of the device against a local
// MaxMind GeoLite2/GeoIP2 City database. It is the coarsest provider and mostly serves as
// a last resort when neither GPS nor WiFi positioning is available.
type GeolocationMaxMindProvider struct {
	name       string
	db         cityReader
	closeFn    func() error
	http       *http.Client
	ipEndpoint string
	period     time.Duration
	ttl        time.Duration
	publicIPFn func(ctx context.Context) (net.IP, error)
}

// NewGeolocationMaxMindProvider opens the City database at path.
func NewGeolocationMaxMindProvider(client *http.Client, path string) (*GeolocationMaxMindProvider, error) {
	if client == nil {
		return nil, ErrHTTPClientRequired
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MaxMind database %q: %w", path, err)
	}
	provider := newProvider(client, reader)
	provider.closeFn = reader.Close
	return provider, nil
}

func newProvider(client *http.Client, reader cityReader) *GeolocationMaxMindProvider {
	provider := &GeolocationMaxMindProvider{
		name:       name,
		db:         reader,
		http:       client,
		ipEndpoint: DefaultIPEndpoint,
		period:     time.Minute * 10,
		ttl:        time.Hour,
	}
	provider.publicIPFn = provider.publicIP
	return provider
}

// Name returns the name of the provider.
func (p *GeolocationMaxMindProvider) Name() string {
	return p.name
}

// Close releases the database.
func (p *GeolocationMaxMindProvider) Close() error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}

// LookupStream resolves the public IP periodically and emits the database position on change.
func (p *GeolocationMaxMindProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
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

			coord, acc, err := p.locate(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case out <- geobus.Result{Key: key, Source: p.name, Err: err}:
				}
				continue
			}
			if !state.HasChanged(coord) {
				continue
			}
			state.Update(coord)
			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, coord, acc):
			}
		}
	}()
	return out
}

func (p *GeolocationMaxMindProvider) createResult(key string, coord geo.Coordinate, acc float64) geobus.Result {
	return geobus.Result{
		Key:            key,
		Coordinate:     coord,
		AccuracyMeters: acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

func (p *GeolocationMaxMindProvider) locate(ctx context.Context) (geo.Coordinate, float64, error) {
	ip, err := p.publicIPFn(ctx)
	if err != nil {
		return geo.Coordinate{}, 0, err
	}
	return p.lookupIP(ip)
}

// lookupIP returns the position and accuracy radius stored for ip.
func (p *GeolocationMaxMindProvider) lookupIP(ip net.IP) (geo.Coordinate, float64, error) {
	city, err := p.db.City(ip)
	if err != nil {
		return geo.Coordinate{}, 0, fmt.Errorf("failed to look up %s: %w", ip, err)
	}
	if city == nil || (city.Location.Latitude == 0 && city.Location.Longitude == 0) {
		return geo.Coordinate{}, 0, fmt.Errorf("%w: %s", ErrNoLocation, ip)
	}
	coord, err := geo.NewCoordinate(
		geobus.Truncate(city.Location.Latitude, geobus.TruncPrecision),
		geobus.Truncate(city.Location.Longitude, geobus.TruncPrecision),
	)
	if err != nil {
		return geo.Coordinate{}, 0, err
	}

	// The accuracy radius is given in kilometers
	acc := float64(city.Location.AccuracyRadius) * 1000
	if acc <= 0 {
		acc = geobus.AccuracyCity
	}
	return coord, acc, nil
}

func (p *GeolocationMaxMindProvider) publicIP(ctx context.Context) (net.IP, error) {
	var result struct {
		IP string `json:"ip"`
	}
	if _, err := p.http.GetWithTimeout(ctx, p.ipEndpoint, &result, nil, nil, lookupTimeout); err != nil {
		return nil, fmt.Errorf("failed to determine public IP address: %w", err)
	}
	ip := net.ParseIP(result.IP)
	if ip == nil {
		return nil, fmt.Errorf("invalid public IP address: %q", result.IP)
	}
	return ip, nil
}
