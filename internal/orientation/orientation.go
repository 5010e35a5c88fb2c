// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package orientation delivers compass and tilt samples of the device.
package orientation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wneessen/incident-ar/internal/geo"
)

var (
	ErrPermissionDenied  = errors.New("orientation permission denied")
	ErrUnavailable       = errors.New("orientation sensor unavailable")
	ErrIncompleteReading = errors.New("orientation reading is incomplete")
	ErrUnknownCapability = errors.New("unknown orientation capability")
)

// Capability describes how a platform unlocks orientation events.
type Capability string

const (
	// CapabilityImplicit platforms deliver samples as soon as the sensor is read.
	CapabilityImplicit Capability = "implicit"
	// CapabilityGesture platforms only deliver samples after an explicit user action.
	CapabilityGesture Capability = "gesture"
)

// ParseCapability returns the Capability for s. An empty string selects CapabilityImplicit.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CapabilityImplicit, nil
	case CapabilityImplicit, CapabilityGesture:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, s)
	}
}

// RequiresGesture reports whether samples need a user action before they are delivered.
func (c Capability) RequiresGesture() bool {
	return c == CapabilityGesture
}

// Sample is one orientation reading. HeadingDegrees is the compass azimuth in [0,360).
type Sample struct {
	HeadingDegrees float64 `json:"heading"`
	PitchDegrees   float64 `json:"pitch"`
	RollDegrees    float64 `json:"roll"`
}

// Reading is a raw sensor message. It either carries the device orientation angles
// alpha, beta and gamma or an explicit heading, pitch and roll.
type Reading struct {
	Alpha   *float64 `json:"alpha"`
	Beta    *float64 `json:"beta"`
	Gamma   *float64 `json:"gamma"`
	Heading *float64 `json:"heading"`
	Pitch   *float64 `json:"pitch"`
	Roll    *float64 `json:"roll"`
}

// Sample converts the reading. Readings with a missing or non-finite angle fail.
func (r Reading) Sample() (Sample, error) {
	heading, pitch, roll := r.Alpha, r.Beta, r.Gamma
	if r.Heading != nil {
		heading, pitch, roll = r.Heading, r.Pitch, r.Roll
	}
	if heading == nil || pitch == nil || roll == nil {
		return Sample{}, ErrIncompleteReading
	}
	for _, v := range []float64{*heading, *pitch, *roll} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Sample{}, fmt.Errorf("%w: non-finite angle", ErrIncompleteReading)
		}
	}
	return Sample{
		HeadingDegrees: geo.NormalizeDegrees(*heading),
		PitchDegrees:   *pitch,
		RollDegrees:    *roll,
	}, nil
}
