// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package projection maps reports onto the horizontal axis of the camera view. It uses a
// linear angular mapping: the horizontal field of view is spread evenly over the viewport
// width, which is not a perspective projection.
package projection

import (
	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/reports"
)

// DefaultFOVDegrees is the horizontal field of view assumed for the camera.
const DefaultFOVDegrees = 60.0

// Marker is a report placed on screen for one frame.
type Marker struct {
	Report                 reports.Report `json:"report"`
	ScreenX                float64        `json:"screen_x"`
	BearingDegrees         float64        `json:"bearing"`
	RelativeBearingDegrees float64        `json:"relative_bearing"`
	DistanceMeters         float64        `json:"distance"`
}

// Project places target relative to the device at self looking towards headingDegrees.
// The second return value is false if the target lies outside the field of view. A target
// exactly at half the field of view counts as outside.
func Project(self geo.Coordinate, headingDegrees float64, target reports.Report, viewportWidth, fovDegrees float64) (Marker, bool) {
	bearing := geo.InitialBearingDegrees(self, target.Location)
	relative := RelativeBearing(bearing, headingDegrees)
	if !Visible(relative, fovDegrees) {
		return Marker{}, false
	}

	return Marker{
		Report:                 target,
		ScreenX:                ScreenX(relative, viewportWidth, fovDegrees),
		BearingDegrees:         bearing,
		RelativeBearingDegrees: relative,
		DistanceMeters:         geo.DistanceMeters(self, target.Location),
	}, true
}

// RelativeBearing returns the clockwise angle from the heading to the bearing in [0,360).
func RelativeBearing(bearing, heading float64) float64 {
	return geo.NormalizeDegrees(bearing - heading)
}

// Visible reports whether a relative bearing lies strictly within half the field of view
// on either side of the heading.
func Visible(relative, fovDegrees float64) bool {
	half := fovDegrees / 2
	return relative < half || relative > 360-half
}

// SignedAngle folds a relative bearing into (-180,180], negative to the left of the heading.
func SignedAngle(relative float64) float64 {
	if relative > 180 {
		return relative - 360
	}
	return relative
}

// ScreenX maps a relative bearing onto the viewport. The heading maps onto the center.
func ScreenX(relative, viewportWidth, fovDegrees float64) float64 {
	return SignedAngle(relative)/fovDegrees*viewportWidth + viewportWidth/2
}
