// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package overlay keeps the marker set of the camera view in sync with the device position,
// its heading and the known reports.
package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/logger"
	"github.com/wneessen/incident-ar/internal/nearby"
	"github.com/wneessen/incident-ar/internal/orientation"
	"github.com/wneessen/incident-ar/internal/projection"
	"github.com/wneessen/incident-ar/internal/reports"
	"github.com/wneessen/incident-ar/internal/sensor"
)

const navigationTimeout = 10 * time.Second

var (
	ErrDisposed          = errors.New("overlay is disposed")
	ErrNotVisible        = errors.New("report is not on screen")
	ErrNoSelection       = errors.New("no report selected")
	ErrNavigatorRequired = errors.New("navigator is required")
)

// Navigator hands a destination over to a map application.
type Navigator interface {
	Open(ctx context.Context, dest geo.Coordinate) error
}

// Config holds the projection parameters of a Loop.
type Config struct {
	RadiusMeters  float64
	FOVDegrees    float64
	ViewportWidth float64
}

// Frame is the marker set of one render pass. Added and Removed list the report IDs that
// entered or left the view compared to the previous frame.
type Frame struct {
	Seq       uint64              `json:"seq"`
	At        time.Time           `json:"at"`
	State     sensor.State        `json:"state"`
	Self      geo.Coordinate      `json:"self"`
	Heading   float64             `json:"heading"`
	Nearby    int                 `json:"nearby"`
	Markers   []projection.Marker `json:"markers"`
	Added     []uuid.UUID         `json:"added,omitempty"`
	Removed   []uuid.UUID         `json:"removed,omitempty"`
	Selection *uuid.UUID          `json:"selection,omitempty"`
}

// Loop recomputes the markers whenever a new orientation sample arrives, the position
// changes or the report list changes. Markers are only produced while the sensors are
// granted and the compass is active. Once disposed the Loop never renders again.
type Loop struct {
	config    Config
	navigator Navigator
	logger    *logger.Logger

	mu         sync.Mutex
	state      sensor.State
	self       geo.Coordinate
	haveSelf   bool
	candidates []reports.Report
	nearby     []reports.Report
	sample     orientation.Sample
	haveSample bool
	markers    []projection.Marker
	seq        uint64
	selected   *projection.Marker
	disposed   bool
	listeners  []func(Frame)
}

// NewLoop returns a Loop that renders nothing until it received a granted state, a position
// and an orientation sample.
func NewLoop(conf Config, navigator Navigator, log *logger.Logger) (*Loop, error) {
	if navigator == nil {
		return nil, ErrNavigatorRequired
	}
	if conf.RadiusMeters <= 0 {
		conf.RadiusMeters = nearby.DefaultRadiusMeters
	}
	if conf.FOVDegrees <= 0 {
		conf.FOVDegrees = projection.DefaultFOVDegrees
	}
	return &Loop{config: conf, navigator: navigator, logger: log}, nil
}

// OnFrame registers fn to be called with every rendered frame.
func (l *Loop) OnFrame(fn func(Frame)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// SetState applies a state of the sensor controller. self is the acquired position and only
// used while granted. A disposed state ends the loop and clears the selection.
func (l *Loop) SetState(state sensor.State, self geo.Coordinate) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.state = state
	switch state.Phase {
	case sensor.PhaseGranted:
		if !l.haveSelf || l.self != self {
			l.self = self
			l.haveSelf = true
			l.selectNearbyLocked()
		}
	case sensor.PhaseDisposed:
		l.disposed = true
		l.selected = nil
		fallthrough
	default:
		l.haveSelf = false
		l.haveSample = false
		l.nearby = nil
	}
	l.renderLocked()
}

// SetReports replaces the candidate reports.
func (l *Loop) SetReports(list []reports.Report) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.candidates = append([]reports.Report(nil), list...)
	l.selectNearbyLocked()
	l.renderLocked()
}

// OnSample re-renders the markers for a new orientation sample.
func (l *Loop) OnSample(sample orientation.Sample) {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.sample = sample
	l.haveSample = true
	l.renderLocked()
}

// Frame returns the most recent frame.
func (l *Loop) Frame() Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frameLocked(nil, nil)
}

// Select opens the detail view of a report that is currently on screen.
func (l *Loop) Select(id uuid.UUID) (projection.Marker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return projection.Marker{}, ErrDisposed
	}
	for _, m := range l.markers {
		if m.Report.ID == id {
			selected := m
			l.selected = &selected
			return selected, nil
		}
	}
	return projection.Marker{}, ErrNotVisible
}

// Selection returns the report of the open detail view. The marker is the one of the moment
// the report was selected; it stays open when the report leaves the view.
func (l *Loop) Selection() (projection.Marker, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.selected == nil {
		return projection.Marker{}, false
	}
	return *l.selected, true
}

// ClearSelection closes the detail view.
func (l *Loop) ClearSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = nil
}

// Navigate hands the selected report over to the navigator. The handoff runs in the
// background and its outcome is only logged.
func (l *Loop) Navigate() error {
	l.mu.Lock()
	if l.selected == nil {
		l.mu.Unlock()
		return ErrNoSelection
	}
	dest := l.selected.Report.Location
	id := l.selected.Report.ID
	l.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), navigationTimeout)
		defer cancel()
		if err := l.navigator.Open(ctx, dest); err != nil {
			l.logger.Error("failed to open navigation", slog.String("report", id.String()), logger.Err(err))
		}
	}()
	return nil
}

func (l *Loop) selectNearbyLocked() {
	if !l.haveSelf {
		l.nearby = nil
		return
	}
	l.nearby = nearby.Select(l.self, l.candidates, l.config.RadiusMeters)
}

// renderLocked projects the nearby reports, hands the frame to the listeners and releases mu.
func (l *Loop) renderLocked() {
	var markers []projection.Marker
	// A delivered sample proves an active compass even if its state notification is still pending
	if l.state.Phase == sensor.PhaseGranted && l.haveSelf && l.haveSample {
		markers = make([]projection.Marker, 0, len(l.nearby))
		for _, r := range l.nearby {
			if m, ok := projection.Project(l.self, l.sample.HeadingDegrees, r, l.config.ViewportWidth,
				l.config.FOVDegrees); ok {
				markers = append(markers, m)
			}
		}
	}

	added, removed := diff(l.markers, markers)
	l.markers = markers
	l.seq++
	frame := l.frameLocked(added, removed)
	listeners := append([]func(Frame){}, l.listeners...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(frame)
	}
}

func (l *Loop) frameLocked(added, removed []uuid.UUID) Frame {
	state := l.state
	if state.Phase == sensor.PhaseGranted && l.haveSample {
		state.CompassActive = true
	}
	frame := Frame{
		Seq:     l.seq,
		At:      time.Now(),
		State:   state,
		Self:    l.self,
		Heading: l.sample.HeadingDegrees,
		Nearby:  len(l.nearby),
		Markers: append([]projection.Marker{}, l.markers...),
		Added:   added,
		Removed: removed,
	}
	if l.selected != nil {
		id := l.selected.Report.ID
		frame.Selection = &id
	}
	return frame
}

// diff returns the report IDs only present in next and the ones only present in prev.
func diff(prev, next []projection.Marker) (added, removed []uuid.UUID) {
	before := make(map[uuid.UUID]struct{}, len(prev))
	for _, m := range prev {
		before[m.Report.ID] = struct{}{}
	}
	after := make(map[uuid.UUID]struct{}, len(next))
	for _, m := range next {
		after[m.Report.ID] = struct{}{}
		if _, ok := before[m.Report.ID]; !ok {
			added = append(added, m.Report.ID)
		}
	}
	for _, m := range prev {
		if _, ok := after[m.Report.ID]; !ok {
			removed = append(removed, m.Report.ID)
		}
	}
	return added, removed
}
