// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geo implements the spherical geodesy used to place incident reports relative to
// the device: great-circle distances, initial bearings and compass labels.
package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in meters used by all spherical calculations.
const EarthRadius = 6371000.0

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Coordinate is a geographic position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// NewCoordinate returns a Coordinate for the given latitude and longitude or an error if
// either value is out of range.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("coordinate out of range: %f, %f", lat, lon)
	}
	return c, nil
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// String implements the fmt.Stringer interface.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lon)
}

// DistanceMeters returns the great-circle distance between a and b using the haversine
// formula on a sphere with EarthRadius.
func DistanceMeters(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// InitialBearingDegrees returns the forward azimuth from a to b in [0,360). Coincident
// coordinates have no defined bearing and yield 0.
func InitialBearingDegrees(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	if x == 0 && y == 0 {
		return 0
	}
	return NormalizeDegrees(toDegrees(math.Atan2(y, x)))
}

// NormalizeDegrees folds an angle into [0,360).
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// math.Mod of a tiny negative value plus 360 can round up to exactly 360
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// CompassPoint converts a bearing into an 8-point compass label.
func CompassPoint(bearing float64) string {
	idx := int((NormalizeDegrees(bearing)+22.5)/45.0) % len(compassPoints)
	return compassPoints[idx]
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
