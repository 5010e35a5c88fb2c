// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package projection

import (
	"math"
	"testing"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/reports"
)

const (
	testWidth = 400.0
	epsilon   = 1e-9
)

var (
	self = geo.Coordinate{Lat: 14.8340, Lon: -91.5180}
	east = reports.Report{Category: reports.CategoryRoad, Location: geo.Coordinate{Lat: 14.8340, Lon: -91.5130}}
)

func TestVisible(t *testing.T) {
	tests := []struct {
		name     string
		relative float64
		want     bool
	}{
		{"straight ahead", 0, true},
		{"just inside to the right", 29.999, true},
		{"exactly half the fov to the right", 30, false},
		{"outside to the right", 30.001, false},
		{"just inside to the left", 330.001, true},
		{"exactly half the fov to the left", 330, false},
		{"outside to the left", 329.999, false},
		{"behind", 180, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Visible(tc.relative, DefaultFOVDegrees); got != tc.want {
				t.Errorf("expected visibility of %f to be %t, got %t", tc.relative, tc.want, got)
			}
		})
	}
}

func TestScreenX(t *testing.T) {
	tests := []struct {
		name     string
		relative float64
		want     float64
	}{
		{"heading maps to the center", 0, testWidth / 2},
		{"right edge", 29.999, testWidth/2 + 29.999/60*testWidth},
		{"left edge", 330.001, testWidth/2 - 29.999/60*testWidth},
		{"quarter to the right", 15, testWidth * 0.75},
		{"quarter to the left", 345, testWidth * 0.25},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScreenX(tc.relative, testWidth, DefaultFOVDegrees); math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("expected screenX to be %f, got %f", tc.want, got)
			}
		})
	}
}

func TestScreenX_center(t *testing.T) {
	for _, fov := range []float64{DefaultFOVDegrees, 90} {
		for _, width := range []float64{320, testWidth, 1080, 1920.5} {
			if got := ScreenX(0, width, fov); got != width/2 {
				t.Errorf("expected heading to map to %f for width %f and fov %f, got %f", width/2, width, fov, got)
			}
		}
	}
}

func TestSignedAngle(t *testing.T) {
	if got := SignedAngle(180); got != 180 {
		t.Errorf("expected 180 to stay 180, got %f", got)
	}
	if got := SignedAngle(270); got != -90 {
		t.Errorf("expected 270 to fold to -90, got %f", got)
	}
}

func TestProject(t *testing.T) {
	t.Run("the report east of the device is centered when facing east", func(t *testing.T) {
		marker, ok := Project(self, 90, east, testWidth, DefaultFOVDegrees)
		if !ok {
			t.Fatal("expected report to be visible")
		}
		if math.Abs(marker.ScreenX-testWidth/2) > 0.01 {
			t.Errorf("expected screenX to be about %f, got %f", testWidth/2, marker.ScreenX)
		}
		if marker.BearingDegrees < 89.99 || marker.BearingDegrees > 90.01 {
			t.Errorf("expected bearing to be about 90, got %f", marker.BearingDegrees)
		}
		if marker.RelativeBearingDegrees > 0.01 && marker.RelativeBearingDegrees < 359.99 {
			t.Errorf("expected relative bearing to be about 0, got %f", marker.RelativeBearingDegrees)
		}
		if marker.DistanceMeters < 530 || marker.DistanceMeters > 545 {
			t.Errorf("expected distance to be about 537m, got %f", marker.DistanceMeters)
		}
		if marker.Report.Category != east.Category {
			t.Error("expected marker to carry its report")
		}
	})
	t.Run("the report is hidden when facing north", func(t *testing.T) {
		if _, ok := Project(self, 0, east, testWidth, DefaultFOVDegrees); ok {
			t.Error("expected report to be hidden")
		}
	})
	t.Run("the report is hidden when facing away", func(t *testing.T) {
		if _, ok := Project(self, 270, east, testWidth, DefaultFOVDegrees); ok {
			t.Error("expected report to be hidden")
		}
	})
	t.Run("the field of view boundary is exclusive", func(t *testing.T) {
		bearing := geo.InitialBearingDegrees(self, east.Location)
		if _, ok := Project(self, bearing-30, east, testWidth, DefaultFOVDegrees); ok {
			t.Error("expected report exactly at +fov/2 to be hidden")
		}
		if _, ok := Project(self, bearing+30, east, testWidth, DefaultFOVDegrees); ok {
			t.Error("expected report exactly at -fov/2 to be hidden")
		}
		marker, ok := Project(self, bearing-29.9, east, testWidth, DefaultFOVDegrees)
		if !ok {
			t.Fatal("expected report just inside the fov to be visible")
		}
		if marker.ScreenX <= testWidth/2 || marker.ScreenX > testWidth {
			t.Errorf("expected marker in the right half, got %f", marker.ScreenX)
		}
	})
	t.Run("a report at the device position is straight ahead", func(t *testing.T) {
		here := reports.Report{Location: self}
		marker, ok := Project(self, 0, here, testWidth, DefaultFOVDegrees)
		if !ok {
			t.Fatal("expected coincident report to be visible")
		}
		if marker.DistanceMeters != 0 {
			t.Errorf("expected distance to be 0, got %f", marker.DistanceMeters)
		}
		if math.Abs(marker.ScreenX-testWidth/2) > epsilon {
			t.Errorf("expected screenX to be %f, got %f", testWidth/2, marker.ScreenX)
		}
	})
	t.Run("heading wraps around north", func(t *testing.T) {
		north := reports.Report{Location: geo.Coordinate{Lat: 14.8400, Lon: -91.5180}}
		marker, ok := Project(self, 350, north, testWidth, DefaultFOVDegrees)
		if !ok {
			t.Fatal("expected report to be visible")
		}
		want := testWidth/2 + 10.0/60*testWidth
		if math.Abs(marker.ScreenX-want) > 0.01 {
			t.Errorf("expected screenX to be about %f, got %f", want, marker.ScreenX)
		}
	})
}
