// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/geobus"
	"github.com/wneessen/incident-ar/internal/gpspoll"
)

const (
	testLat = 14.834
	testLon = -91.518
)

func TestNewGeolocationGPSDProvider(t *testing.T) {
	t.Run("new GPSd provider succeeds", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider("", "")
		if provider == nil {
			t.Fatal("expected provider to be non-nil")
		}
		if provider.client.Addr != "localhost:2947" {
			t.Errorf("expected default address to be localhost:2947, got %s", provider.client.Addr)
		}
	})
	t.Run("custom host and port are used", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider("gps.local", "3000")
		if provider.client.Addr != "gps.local:3000" {
			t.Errorf("expected address to be gps.local:3000, got %s", provider.client.Addr)
		}
	})
}

func TestGeolocationGPSDProvider_Name(t *testing.T) {
	provider := NewGeolocationGPSDProvider("", "")
	if !strings.EqualFold(provider.Name(), name) {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestGeolocationGPSDProvider_createResult(t *testing.T) {
	provider := NewGeolocationGPSDProvider("", "")
	coord := geo.Coordinate{Lat: testLat, Lon: testLon}
	result := provider.createResult("test", coord, geobus.AccuracyGPS)
	if result.Coordinate != coord {
		t.Errorf("expected coordinate to be %s, got %s", coord, result.Coordinate)
	}
	if result.Key != "test" {
		t.Errorf("expected key to be %s, got %s", "test", result.Key)
	}
	if result.AccuracyMeters != geobus.AccuracyGPS {
		t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyGPS, result.AccuracyMeters)
	}
	if result.Source != provider.Name() {
		t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
	}
	if result.TTL != provider.ttl {
		t.Errorf("expected TTL to be %d, got %d", provider.ttl, result.TTL)
	}
}

func TestGeolocationGPSDProvider_LookupStream(t *testing.T) {
	t.Run("failed poll is reported before the first fix", func(t *testing.T) {
		runCount := 0
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := NewGeolocationGPSDProvider("", "")
			provider.period = time.Millisecond * 10
			provider.locateFn = func(ctx context.Context) (gpspoll.Fix, error) {
				if runCount == 0 {
					runCount++
					return gpspoll.Fix{}, errors.New("intentionally failing")
				}
				if runCount == 1 {
					runCount++
					return gpspoll.Fix{Lat: 1, Lon: 2, Acc: 3, Mode: 1}, nil
				}
				return gpspoll.Fix{Lat: testLat, Lon: testLon, Acc: 3.0, Mode: 2, Time: time.Now()}, nil
			}

			out := provider.LookupStream(ctx, "test")
			if out == nil {
				t.Fatal("expected stream to be non-nil")
			}

			first := <-out
			if !first.Failed() {
				t.Fatal("expected first result to be a failed lookup")
			}
			result := <-out
			cancel()
			synctest.Wait()

			if result.Failed() {
				t.Fatalf("expected a position, got error: %s", result.Err)
			}
			if math.Abs(result.Coordinate.Lat-testLat) > 1e-9 {
				t.Errorf("expected latitude to be %f, got %f", testLat, result.Coordinate.Lat)
			}
			if math.Abs(result.Coordinate.Lon-testLon) > 1e-9 {
				t.Errorf("expected longitude to be %f, got %f", testLon, result.Coordinate.Lon)
			}
			if result.AccuracyMeters != 3.0 {
				t.Errorf("expected accuracy to be %f, got %f", 3.0, result.AccuracyMeters)
			}
		})
	})
	t.Run("stale fixes are skipped", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*50)
			defer cancel()

			provider := NewGeolocationGPSDProvider("", "")
			provider.period = time.Millisecond * 10
			provider.locateFn = func(ctx context.Context) (gpspoll.Fix, error) {
				return gpspoll.Fix{Lat: testLat, Lon: testLon, Acc: 3, Mode: 3, Time: time.Now().Add(-time.Hour)}, nil
			}
			for r := range provider.LookupStream(ctx, "test") {
				t.Errorf("expected no result, got %+v", r)
			}
		})
	})
}
