// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sensor

import (
	"github.com/wneessen/incident-ar/internal/orientation"
)

// Phase is a step of the acquisition state machine.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseRequestingLocation
	PhaseRequestingCamera
	PhaseGranted
	PhaseFailed
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseRequestingLocation:
		return "requesting_location"
	case PhaseRequestingCamera:
		return "requesting_camera"
	case PhaseGranted:
		return "granted"
	case PhaseFailed:
		return "failed"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a snapshot of the controller. Err holds the failure reason while Failed and a
// refused compass permission while Granted.
type State struct {
	Phase          Phase                  `json:"phase"`
	Capability     orientation.Capability `json:"capability"`
	CompassEnabled bool                   `json:"compass_enabled"`
	CompassActive  bool                   `json:"compass_active"`
	Err            *AcquisitionError      `json:"-"`
}

// Rendering reports whether markers may be drawn in this state.
func (s State) Rendering() bool {
	return s.Phase == PhaseGranted && s.CompassActive
}

// NeedsCompassGesture reports whether the user has to trigger the compass explicitly.
func (s State) NeedsCompassGesture() bool {
	return s.Phase == PhaseGranted && s.Capability.RequiresGesture() && !s.CompassEnabled
}
