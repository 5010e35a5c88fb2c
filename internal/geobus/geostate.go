// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import "github.com/wneessen/incident-ar/internal/geo"

// MovementThreshold is the distance in meters a position has to move before a provider
// emits it again. AR markers within a few hundred meters need a much finer threshold than
// a city-level weather lookup.
const MovementThreshold = 5.0

// GeolocationState tracks the last known position of a provider.
// It provides functionality to detect changes in geolocation data.
type GeolocationState struct {
	last     geo.Coordinate
	haveLast bool
}

// HasChanged reports whether c moved more than MovementThreshold away from the last
// stored position. An empty state always reports a change.
func (s *GeolocationState) HasChanged(c geo.Coordinate) bool {
	if !s.haveLast {
		return true
	}
	return geo.DistanceMeters(s.last, c) > MovementThreshold
}

// Update stores c as the last known position.
func (s *GeolocationState) Update(c geo.Coordinate) {
	s.last = c
	s.haveLast = true
}
