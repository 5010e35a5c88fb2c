// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package nearby selects the reports within walking distance of the device.
package nearby

import (
	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/reports"
)

// DefaultRadiusMeters is the selection radius used by the overlay.
const DefaultRadiusMeters = 500.0

// Select returns the candidates within radiusMeters of self. The boundary is inclusive. The
// relative order of the candidates is kept and the input is not modified.
func Select(self geo.Coordinate, candidates []reports.Report, radiusMeters float64) []reports.Report {
	selected := make([]reports.Report, 0, len(candidates))
	for _, r := range candidates {
		if geo.DistanceMeters(self, r.Location) <= radiusMeters {
			selected = append(selected, r)
		}
	}
	return selected
}
