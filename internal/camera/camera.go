// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package camera opens the video devices that back the camera view. A stream holds the
// device nodes open for as long as the view needs the picture and releases them on Close.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
)

// Facing selects the camera by its orientation relative to the screen.
type Facing string

const (
	// FacingEnvironment is the rear camera pointing away from the user.
	FacingEnvironment Facing = "environment"
	// FacingUser is the front camera.
	FacingUser Facing = "user"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrUnavailable      = errors.New("camera unavailable")
)

// Track is one video track of a stream.
type Track struct {
	id      string
	handle  io.Closer
	stopped atomic.Bool
}

// NewTrack returns a track for the device id. Stopping the track closes handle.
func NewTrack(id string, handle io.Closer) *Track {
	return &Track{id: id, handle: handle}
}

// ID returns the device path backing the track.
func (t *Track) ID() string {
	return t.id
}

// Stopped reports whether the track was stopped.
func (t *Track) Stopped() bool {
	return t.stopped.Load()
}

// Stop releases the track. Stopping a track twice has no effect.
func (t *Track) Stop() error {
	if t.stopped.Swap(true) {
		return nil
	}
	if t.handle == nil {
		return nil
	}
	return t.handle.Close()
}

// Stream is an open video stream.
type Stream struct {
	tracks []*Track
	once   sync.Once
	err    error
}

// NewStream returns a stream over the given tracks.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns the video tracks of the stream.
func (s *Stream) Tracks() []*Track {
	return s.tracks
}

// Close stops every track. Only the first call has an effect.
func (s *Stream) Close() error {
	s.once.Do(func() {
		var errs []error
		for _, t := range s.tracks {
			if err := t.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop track %s: %w", t.id, err))
			}
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}

// Device opens V4L2 video device nodes. Each facing maps to one device path.
type Device struct {
	devices map[Facing]string
	openFn  func(path string) (io.Closer, error)
}

// NewDevice returns a Device using environment as the rear and user as the front camera.
// An empty path leaves that facing unavailable.
func NewDevice(environment, user string) *Device {
	return &Device{
		devices: map[Facing]string{
			FacingEnvironment: environment,
			FacingUser:        user,
		},
		openFn: openDevice,
	}
}

// OpenVideoStream opens the camera for the given facing. The stream carries video only.
func (d *Device) OpenVideoStream(ctx context.Context, facing Facing) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.devices[facing]
	if path == "" {
		return nil, fmt.Errorf("%w: no %s camera configured", ErrUnavailable, facing)
	}
	handle, err := d.openFn(path)
	if err != nil {
		return nil, classify(path, err)
	}
	// Late openings of an abandoned request are released right away
	if err = ctx.Err(); err != nil {
		_ = handle.Close()
		return nil, err
	}
	return NewStream(NewTrack(path, handle)), nil
}

func openDevice(path string) (io.Closer, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

func classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, path, err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ENODEV),
		errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	default:
		return fmt.Errorf("failed to open camera %s: %w", strings.TrimSpace(path), err)
	}
}
