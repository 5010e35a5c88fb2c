// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/incident-ar/internal/camera"
	"github.com/wneessen/incident-ar/internal/location"
	"github.com/wneessen/incident-ar/internal/orientation"
)

// Stage is the acquisition step an error occurred in.
type Stage string

const (
	StageLocation    Stage = "location"
	StageCamera      Stage = "camera"
	StageOrientation Stage = "orientation"
)

// Kind is the generic class of an acquisition error.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindTimeout
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "device unavailable"
	default:
		return "unknown"
	}
}

var (
	ErrLocationPermissionDenied    = errors.New("location permission denied")
	ErrLocationTimeout             = errors.New("location timeout")
	ErrCameraPermissionDenied      = errors.New("camera permission denied")
	ErrCameraUnavailable           = errors.New("camera unavailable")
	ErrOrientationPermissionDenied = errors.New("orientation permission denied")
	ErrUnknown                     = errors.New("unknown acquisition error")

	// Generic kinds, matched regardless of the stage
	ErrPermissionDenied  = errors.New("permission denied")
	ErrTimeout           = errors.New("timeout")
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// AcquisitionError is a failed acquisition step. It matches the stage specific sentinels
// and the generic kind sentinels through errors.Is.
type AcquisitionError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the stage and kind combination.
func (e *AcquisitionError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case e.Sentinel():
		return true
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrDeviceUnavailable:
		return e.Kind == KindUnavailable
	}
	return false
}

// Sentinel returns the stage specific error the AcquisitionError stands for.
func (e *AcquisitionError) Sentinel() error {
	switch {
	case e.Stage == StageLocation && e.Kind == KindPermissionDenied:
		return ErrLocationPermissionDenied
	case e.Stage == StageLocation && e.Kind == KindTimeout:
		return ErrLocationTimeout
	case e.Stage == StageCamera && e.Kind == KindPermissionDenied:
		return ErrCameraPermissionDenied
	case e.Stage == StageCamera && e.Kind == KindUnavailable:
		return ErrCameraUnavailable
	case e.Stage == StageOrientation && e.Kind == KindPermissionDenied:
		return ErrOrientationPermissionDenied
	default:
		return ErrUnknown
	}
}

// classify wraps err of the given stage into an AcquisitionError.
func classify(stage Stage, err error) *AcquisitionError {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, location.ErrPermissionDenied), errors.Is(err, camera.ErrPermissionDenied),
		errors.Is(err, orientation.ErrPermissionDenied):
		kind = KindPermissionDenied
	case errors.Is(err, location.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, camera.ErrUnavailable), errors.Is(err, orientation.ErrUnavailable):
		kind = KindUnavailable
	}
	return &AcquisitionError{Stage: stage, Kind: kind, Err: err}
}
