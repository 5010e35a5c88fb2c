// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package sensor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/incident-ar/internal/camera"
	"github.com/wneessen/incident-ar/internal/geo"
	"github.com/wneessen/incident-ar/internal/location"
	"github.com/wneessen/incident-ar/internal/orientation"
	"github.com/wneessen/incident-ar/internal/testhelper"
)

var xela = geo.Coordinate{Lat: 14.8340, Lon: -91.5180}

type fakeLocation struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (geo.Coordinate, error)
}

func (f *fakeLocation) CurrentFix(ctx context.Context, highAccuracy bool, _ time.Duration) (geo.Coordinate, error) {
	f.calls.Add(1)
	if !highAccuracy {
		return geo.Coordinate{}, errors.New("expected a high accuracy request")
	}
	if f.fn == nil {
		return xela, nil
	}
	return f.fn(ctx)
}

type countingCloser struct {
	closed atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

type fakeCamera struct {
	mu      sync.Mutex
	calls   int
	facings []camera.Facing
	handles []*countingCloser
	fn      func(ctx context.Context) error
}

func (f *fakeCamera) OpenVideoStream(ctx context.Context, facing camera.Facing) (*camera.Stream, error) {
	f.mu.Lock()
	f.calls++
	f.facings = append(f.facings, facing)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return nil, err
		}
	}
	handle := &countingCloser{}
	f.mu.Lock()
	f.handles = append(f.handles, handle)
	f.mu.Unlock()
	return camera.NewStream(camera.NewTrack("video0", handle)), nil
}

func (f *fakeCamera) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOrientation struct {
	*orientation.Feed
	requests atomic.Int32
	deny     atomic.Bool
	active   atomic.Int32
}

// Subscribe counts the subscriptions that were not ended yet.
func (f *fakeOrientation) Subscribe() (<-chan orientation.Event, func()) {
	events, unsubscribe := f.Feed.Subscribe()
	f.active.Add(1)
	var once sync.Once
	return events, func() {
		once.Do(func() {
			f.active.Add(-1)
			unsubscribe()
		})
	}
}

func (f *fakeOrientation) Subscribers() int {
	return int(f.active.Load())
}

func (f *fakeOrientation) RequestAccess(context.Context) error {
	f.requests.Add(1)
	if f.deny.Load() {
		return orientation.ErrPermissionDenied
	}
	return nil
}

type fixture struct {
	loc        *fakeLocation
	cam        *fakeCamera
	orient     *fakeOrientation
	controller *Controller
}

func newFixture(t *testing.T, capability orientation.Capability) *fixture {
	t.Helper()
	f := &fixture{
		loc:    &fakeLocation{},
		cam:    &fakeCamera{},
		orient: &fakeOrientation{Feed: orientation.NewFeed()},
	}
	controller, err := New(f.loc, f.cam, f.orient, Config{Capability: capability}, testhelper.Logger())
	if err != nil {
		t.Fatalf("failed to create controller: %s", err)
	}
	f.controller = controller
	return f
}

func TestNew(t *testing.T) {
	t.Run("missing services fail", func(t *testing.T) {
		_, err := New(nil, &fakeCamera{}, &fakeOrientation{Feed: orientation.NewFeed()}, Config{}, testhelper.Logger())
		if !errors.Is(err, ErrMissingDependency) {
			t.Errorf("expected error to be %s, got %s", ErrMissingDependency, err)
		}
	})
	t.Run("missing logger fails", func(t *testing.T) {
		_, err := New(&fakeLocation{}, &fakeCamera{}, &fakeOrientation{Feed: orientation.NewFeed()}, Config{}, nil)
		if !errors.Is(err, ErrLoggerRequired) {
			t.Errorf("expected error to be %s, got %s", ErrLoggerRequired, err)
		}
	})
	t.Run("defaults are applied", func(t *testing.T) {
		f := newFixture(t, "")
		if f.controller.Capability() != orientation.CapabilityImplicit {
			t.Errorf("expected capability to be %s, got %s", orientation.CapabilityImplicit, f.controller.Capability())
		}
		if f.controller.config.LocationTimeout != location.DefaultTimeout {
			t.Errorf("expected location timeout to be %s, got %s", location.DefaultTimeout,
				f.controller.config.LocationTimeout)
		}
		if state := f.controller.State(); state.Phase != PhaseNotStarted {
			t.Errorf("expected phase to be %s, got %s", PhaseNotStarted, state.Phase)
		}
	})
}

func TestController_Acquire(t *testing.T) {
	t.Run("successful acquisition walks through every phase", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		var mu sync.Mutex
		var phases []Phase
		f.controller.OnStateChange(func(s State) {
			mu.Lock()
			phases = append(phases, s.Phase)
			mu.Unlock()
		})

		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors: %s", err)
		}
		mu.Lock()
		defer mu.Unlock()
		want := []Phase{PhaseRequestingLocation, PhaseRequestingCamera, PhaseGranted}
		if len(phases) != len(want) {
			t.Fatalf("expected phases %v, got %v", want, phases)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("expected phase %d to be %s, got %s", i, want[i], phases[i])
			}
		}
		if fix, ok := f.controller.Location(); !ok || fix != xela {
			t.Errorf("expected location to be %s, got %s (%t)", xela, fix, ok)
		}
		if f.controller.Stream() == nil {
			t.Error("expected camera stream to be exposed")
		}
		if f.cam.facings[0] != camera.FacingEnvironment {
			t.Errorf("expected rear camera to be requested, got %s", f.cam.facings[0])
		}
		if f.orient.Subscribers() != 1 {
			t.Errorf("expected orientation to be subscribed, got %d subscribers", f.orient.Subscribers())
		}
	})
	t.Run("camera is only requested after the location fix", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.loc.fn = func(context.Context) (geo.Coordinate, error) {
			if f.cam.opened() != 0 {
				t.Error("expected camera not to be requested before the location fix")
			}
			if phase := f.controller.State().Phase; phase != PhaseRequestingLocation {
				t.Errorf("expected phase to be %s, got %s", PhaseRequestingLocation, phase)
			}
			return xela, nil
		}
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors: %s", err)
		}
	})
	t.Run("location denial fails without requesting the camera", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.loc.fn = func(context.Context) (geo.Coordinate, error) {
			return geo.Coordinate{}, location.ErrPermissionDenied
		}
		err := f.controller.Acquire(t.Context())
		if !errors.Is(err, ErrLocationPermissionDenied) {
			t.Errorf("expected error to be %s, got %s", ErrLocationPermissionDenied, err)
		}
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("expected error to match %s", ErrPermissionDenied)
		}
		state := f.controller.State()
		if state.Phase != PhaseFailed {
			t.Errorf("expected phase to be %s, got %s", PhaseFailed, state.Phase)
		}
		if state.Err == nil || state.Err.Stage != StageLocation {
			t.Errorf("expected failure reason to be a location error, got %v", state.Err)
		}
		if f.cam.opened() != 0 {
			t.Error("expected camera not to be requested")
		}
	})
	t.Run("location timeout fails", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.loc.fn = func(context.Context) (geo.Coordinate, error) {
			return geo.Coordinate{}, location.ErrTimeout
		}
		err := f.controller.Acquire(t.Context())
		if !errors.Is(err, ErrLocationTimeout) {
			t.Errorf("expected error to be %s, got %s", ErrLocationTimeout, err)
		}
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected error to match %s", ErrTimeout)
		}
	})
	t.Run("camera denial discards the location fix", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.cam.fn = func(context.Context) error {
			return camera.ErrPermissionDenied
		}
		err := f.controller.Acquire(t.Context())
		if !errors.Is(err, ErrCameraPermissionDenied) {
			t.Errorf("expected error to be %s, got %s", ErrCameraPermissionDenied, err)
		}
		state := f.controller.State()
		if state.Phase != PhaseFailed {
			t.Errorf("expected phase to be %s, got %s", PhaseFailed, state.Phase)
		}
		if !errors.Is(state.Err, ErrCameraPermissionDenied) {
			t.Errorf("expected failure reason to be %s, got %v", ErrCameraPermissionDenied, state.Err)
		}
		if fix, ok := f.controller.Location(); ok || fix != (geo.Coordinate{}) {
			t.Errorf("expected no location to be exposed, got %s", fix)
		}
		if f.controller.Stream() != nil {
			t.Error("expected no camera stream")
		}
		if f.orient.Subscribers() != 0 {
			t.Error("expected orientation not to be started")
		}
	})
	t.Run("busy camera is unavailable", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.cam.fn = func(context.Context) error {
			return camera.ErrUnavailable
		}
		err := f.controller.Acquire(t.Context())
		if !errors.Is(err, ErrCameraUnavailable) {
			t.Errorf("expected error to be %s, got %s", ErrCameraUnavailable, err)
		}
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("expected error to match %s", ErrDeviceUnavailable)
		}
	})
	t.Run("unexpected errors are unknown", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.cam.fn = func(context.Context) error {
			return errors.New("intentionally failing")
		}
		err := f.controller.Acquire(t.Context())
		if !errors.Is(err, ErrUnknown) {
			t.Errorf("expected error to be %s, got %s", ErrUnknown, err)
		}
	})
	t.Run("retry restarts the full sequence", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		var denied atomic.Bool
		denied.Store(true)
		f.cam.fn = func(context.Context) error {
			if denied.Load() {
				return camera.ErrPermissionDenied
			}
			return nil
		}
		if err := f.controller.Acquire(t.Context()); err == nil {
			t.Fatal("expected first acquisition to fail")
		}
		denied.Store(false)
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors on retry: %s", err)
		}
		if calls := f.loc.calls.Load(); calls != 2 {
			t.Errorf("expected location to be requested twice, got %d", calls)
		}
		if state := f.controller.State(); state.Phase != PhaseGranted || state.Err != nil {
			t.Errorf("expected clean granted state, got %+v", state)
		}
	})
	t.Run("re-acquiring while granted replaces the stream", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors: %s", err)
		}
		first := f.controller.Stream()
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to re-acquire sensors: %s", err)
		}
		for _, track := range first.Tracks() {
			if !track.Stopped() {
				t.Error("expected replaced stream to be stopped")
			}
		}
		if f.cam.handles[0].closed.Load() != 1 {
			t.Errorf("expected replaced stream to be closed once, got %d", f.cam.handles[0].closed.Load())
		}
		if f.orient.Subscribers() != 1 {
			t.Errorf("expected exactly one orientation subscription, got %d", f.orient.Subscribers())
		}
	})
	t.Run("concurrent acquisition is rejected", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		release := make(chan struct{})
		started := make(chan struct{})
		f.loc.fn = func(context.Context) (geo.Coordinate, error) {
			close(started)
			<-release
			return xela, nil
		}
		done := make(chan error, 1)
		go func() { done <- f.controller.Acquire(t.Context()) }()
		<-started
		if err := f.controller.Acquire(t.Context()); !errors.Is(err, ErrInProgress) {
			t.Errorf("expected error to be %s, got %s", ErrInProgress, err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Errorf("failed to acquire sensors: %s", err)
		}
	})
	t.Run("cancelled request returns to not started", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		ctx, cancel := context.WithCancel(t.Context())
		f.loc.fn = func(ctx context.Context) (geo.Coordinate, error) {
			cancel()
			<-ctx.Done()
			return geo.Coordinate{}, ctx.Err()
		}
		if err := f.controller.Acquire(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected error to be %s, got %s", context.Canceled, err)
		}
		if state := f.controller.State(); state.Phase != PhaseNotStarted {
			t.Errorf("expected phase to be %s, got %s", PhaseNotStarted, state.Phase)
		}
	})
}

func TestController_orientation(t *testing.T) {
	t.Run("compass becomes active with the first sample", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			f := newFixture(t, orientation.CapabilityImplicit)
			received := make(chan orientation.Sample, 4)
			f.controller.OnSample(func(s orientation.Sample) { received <- s })
			if err := f.controller.Acquire(t.Context()); err != nil {
				t.Fatalf("failed to acquire sensors: %s", err)
			}
			if state := f.controller.State(); state.CompassActive || state.Rendering() {
				t.Error("expected compass not to be active before the first sample")
			}

			f.orient.Publish(orientation.Event{Sample: orientation.Sample{HeadingDegrees: 90}})
			synctest.Wait()

			state := f.controller.State()
			if !state.CompassActive || !state.Rendering() {
				t.Error("expected compass to be active")
			}
			sample, ok := f.controller.LatestSample()
			if !ok || sample.HeadingDegrees != 90 {
				t.Errorf("expected latest heading to be 90, got %f (%t)", sample.HeadingDegrees, ok)
			}
			if len(received) != 1 {
				t.Errorf("expected 1 sample to be dispatched, got %d", len(received))
			}
			if err := f.controller.Teardown(); err != nil {
				t.Errorf("failed to tear down: %s", err)
			}
		})
	})
	t.Run("stream errors keep the previous sample", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			f := newFixture(t, orientation.CapabilityImplicit)
			var dispatched atomic.Int32
			f.controller.OnSample(func(orientation.Sample) { dispatched.Add(1) })
			if err := f.controller.Acquire(t.Context()); err != nil {
				t.Fatalf("failed to acquire sensors: %s", err)
			}

			f.orient.Publish(orientation.Event{Sample: orientation.Sample{HeadingDegrees: 45}})
			synctest.Wait()
			f.orient.Publish(orientation.Event{Err: orientation.ErrIncompleteReading})
			synctest.Wait()

			sample, ok := f.controller.LatestSample()
			if !ok || sample.HeadingDegrees != 45 {
				t.Errorf("expected latest heading to stay 45, got %f", sample.HeadingDegrees)
			}
			if dispatched.Load() != 1 {
				t.Errorf("expected 1 sample to be dispatched, got %d", dispatched.Load())
			}
			if state := f.controller.State(); state.Phase != PhaseGranted {
				t.Errorf("expected phase to stay %s, got %s", PhaseGranted, state.Phase)
			}
			_ = f.controller.Teardown()
		})
	})
	t.Run("gesture platforms wait for the compass to be enabled", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			f := newFixture(t, orientation.CapabilityGesture)
			if err := f.controller.Acquire(t.Context()); err != nil {
				t.Fatalf("failed to acquire sensors: %s", err)
			}
			state := f.controller.State()
			if !state.NeedsCompassGesture() {
				t.Error("expected compass gesture to be required")
			}
			f.orient.Publish(orientation.Event{Sample: orientation.Sample{HeadingDegrees: 10}})
			synctest.Wait()
			if _, ok := f.controller.LatestSample(); ok {
				t.Error("expected no sample before the compass is enabled")
			}

			if err := f.controller.EnableCompass(t.Context()); err != nil {
				t.Fatalf("failed to enable compass: %s", err)
			}
			f.orient.Publish(orientation.Event{Sample: orientation.Sample{HeadingDegrees: 20}})
			synctest.Wait()
			if sample, ok := f.controller.LatestSample(); !ok || sample.HeadingDegrees != 20 {
				t.Errorf("expected latest heading to be 20, got %f (%t)", sample.HeadingDegrees, ok)
			}
			if err := f.controller.EnableCompass(t.Context()); err != nil {
				t.Errorf("expected enabling twice to succeed, got %s", err)
			}
			if requests := f.orient.requests.Load(); requests != 1 {
				t.Errorf("expected 1 access request, got %d", requests)
			}
			_ = f.controller.Teardown()
		})
	})
	t.Run("denied compass can be re-triggered", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityGesture)
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors: %s", err)
		}
		f.orient.deny.Store(true)
		err := f.controller.EnableCompass(t.Context())
		if !errors.Is(err, ErrOrientationPermissionDenied) {
			t.Errorf("expected error to be %s, got %s", ErrOrientationPermissionDenied, err)
		}
		state := f.controller.State()
		if state.Phase != PhaseGranted {
			t.Errorf("expected phase to stay %s, got %s", PhaseGranted, state.Phase)
		}
		if !errors.Is(state.Err, ErrOrientationPermissionDenied) {
			t.Errorf("expected compass error to be reported, got %v", state.Err)
		}
		if !state.NeedsCompassGesture() {
			t.Error("expected compass gesture to still be required")
		}

		f.orient.deny.Store(false)
		if err = f.controller.EnableCompass(t.Context()); err != nil {
			t.Fatalf("failed to enable compass on retry: %s", err)
		}
		if state = f.controller.State(); state.Err != nil || !state.CompassEnabled {
			t.Errorf("expected compass to be enabled without error, got %+v", state)
		}
		_ = f.controller.Teardown()
	})
	t.Run("enabling the compass requires granted sensors", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityGesture)
		if err := f.controller.EnableCompass(t.Context()); !errors.Is(err, ErrNotGranted) {
			t.Errorf("expected error to be %s, got %s", ErrNotGranted, err)
		}
	})
}

func TestController_Teardown(t *testing.T) {
	t.Run("teardown stops every track exactly once", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors: %s", err)
		}
		stream := f.controller.Stream()
		if err := f.controller.Teardown(); err != nil {
			t.Fatalf("failed to tear down: %s", err)
		}
		if err := f.controller.Teardown(); err != nil {
			t.Fatalf("failed to tear down twice: %s", err)
		}
		for _, track := range stream.Tracks() {
			if !track.Stopped() {
				t.Error("expected track to be stopped")
			}
		}
		if closed := f.cam.handles[0].closed.Load(); closed != 1 {
			t.Errorf("expected camera to be released once, got %d", closed)
		}
		if f.orient.Subscribers() != 0 {
			t.Error("expected orientation listener to be stopped")
		}
		if state := f.controller.State(); state.Phase != PhaseDisposed {
			t.Errorf("expected phase to be %s, got %s", PhaseDisposed, state.Phase)
		}
		if err := f.controller.Acquire(t.Context()); !errors.Is(err, ErrDisposed) {
			t.Errorf("expected error to be %s, got %s", ErrDisposed, err)
		}
	})
	t.Run("teardown from failed disposes the controller", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		f.loc.fn = func(context.Context) (geo.Coordinate, error) {
			return geo.Coordinate{}, location.ErrPermissionDenied
		}
		_ = f.controller.Acquire(t.Context())
		if err := f.controller.Teardown(); err != nil {
			t.Fatalf("failed to tear down: %s", err)
		}
		if state := f.controller.State(); state.Phase != PhaseDisposed || state.Err != nil {
			t.Errorf("expected disposed state without error, got %+v", state)
		}
	})
	t.Run("late location resolution is ignored", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		started := make(chan struct{})
		release := make(chan struct{})
		f.loc.fn = func(context.Context) (geo.Coordinate, error) {
			close(started)
			<-release
			return xela, nil
		}
		done := make(chan error, 1)
		go func() { done <- f.controller.Acquire(t.Context()) }()
		<-started
		if err := f.controller.Teardown(); err != nil {
			t.Fatalf("failed to tear down: %s", err)
		}
		close(release)
		if err := <-done; !errors.Is(err, ErrAbandoned) {
			t.Errorf("expected error to be %s, got %s", ErrAbandoned, err)
		}
		if f.cam.opened() != 0 {
			t.Error("expected camera not to be requested after teardown")
		}
		if state := f.controller.State(); state.Phase != PhaseDisposed {
			t.Errorf("expected phase to stay %s, got %s", PhaseDisposed, state.Phase)
		}
	})
	t.Run("late camera stream is released", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		started := make(chan struct{})
		release := make(chan struct{})
		f.cam.fn = func(context.Context) error {
			close(started)
			<-release
			return nil
		}
		done := make(chan error, 1)
		go func() { done <- f.controller.Acquire(t.Context()) }()
		<-started
		if err := f.controller.Teardown(); err != nil {
			t.Fatalf("failed to tear down: %s", err)
		}
		close(release)
		if err := <-done; !errors.Is(err, ErrAbandoned) {
			t.Errorf("expected error to be %s, got %s", ErrAbandoned, err)
		}
		if closed := f.cam.handles[0].closed.Load(); closed != 1 {
			t.Errorf("expected late stream to be released once, got %d", closed)
		}
		if f.controller.Stream() != nil {
			t.Error("expected no stream after teardown")
		}
		if f.orient.Subscribers() != 0 {
			t.Error("expected orientation not to be started after teardown")
		}
	})
	t.Run("samples injected after teardown are not dispatched", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			f := newFixture(t, orientation.CapabilityImplicit)
			var dispatched atomic.Int32
			f.controller.OnSample(func(orientation.Sample) { dispatched.Add(1) })
			if err := f.controller.Acquire(t.Context()); err != nil {
				t.Fatalf("failed to acquire sensors: %s", err)
			}
			if err := f.controller.Teardown(); err != nil {
				t.Fatalf("failed to tear down: %s", err)
			}

			f.orient.Publish(orientation.Event{Sample: orientation.Sample{HeadingDegrees: 90}})
			synctest.Wait()
			if dispatched.Load() != 0 {
				t.Errorf("expected no sample dispatch after teardown, got %d", dispatched.Load())
			}
			if _, ok := f.controller.LatestSample(); ok {
				t.Error("expected latest sample slot to be empty")
			}
		})
	})
	t.Run("a sample pending at teardown is dropped", func(t *testing.T) {
		f := newFixture(t, orientation.CapabilityImplicit)
		var dispatched atomic.Int32
		f.controller.OnSample(func(orientation.Sample) { dispatched.Add(1) })
		if err := f.controller.Acquire(t.Context()); err != nil {
			t.Fatalf("failed to acquire sensors: %s", err)
		}
		gen := f.controller.generation
		if err := f.controller.Teardown(); err != nil {
			t.Fatalf("failed to tear down: %s", err)
		}
		if f.controller.apply(gen, orientation.Event{Sample: orientation.Sample{HeadingDegrees: 1}}) {
			t.Error("expected stale sample to end the listener")
		}
		if dispatched.Load() != 0 {
			t.Errorf("expected no sample dispatch after teardown, got %d", dispatched.Load())
		}
	})
}

func TestAcquisitionError(t *testing.T) {
	tests := []struct {
		name     string
		stage    Stage
		err      error
		sentinel error
		generic  error
	}{
		{"location denied", StageLocation, location.ErrPermissionDenied, ErrLocationPermissionDenied, ErrPermissionDenied},
		{"location timeout", StageLocation, location.ErrTimeout, ErrLocationTimeout, ErrTimeout},
		{"location deadline", StageLocation, context.DeadlineExceeded, ErrLocationTimeout, ErrTimeout},
		{"camera denied", StageCamera, camera.ErrPermissionDenied, ErrCameraPermissionDenied, ErrPermissionDenied},
		{"camera unavailable", StageCamera, camera.ErrUnavailable, ErrCameraUnavailable, ErrDeviceUnavailable},
		{"orientation denied", StageOrientation, orientation.ErrPermissionDenied, ErrOrientationPermissionDenied, ErrPermissionDenied},
		{"orientation unavailable", StageOrientation, orientation.ErrUnavailable, ErrUnknown, ErrDeviceUnavailable},
		{"camera timeout", StageCamera, context.DeadlineExceeded, ErrUnknown, ErrTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			acqErr := classify(tc.stage, tc.err)
			if !errors.Is(acqErr, tc.sentinel) {
				t.Errorf("expected error to match %s, got %s", tc.sentinel, acqErr)
			}
			if !errors.Is(acqErr, tc.generic) {
				t.Errorf("expected error to match %s, got %s", tc.generic, acqErr)
			}
			if !errors.Is(acqErr, tc.err) {
				t.Errorf("expected error to wrap %s", tc.err)
			}
		})
	}
	t.Run("unknown errors keep their message", func(t *testing.T) {
		acqErr := classify(StageCamera, errors.New("intentionally failing"))
		if acqErr.Kind != KindUnknown {
			t.Errorf("expected kind to be %s, got %s", KindUnknown, acqErr.Kind)
		}
		if acqErr.Error() != "camera: unknown: intentionally failing" {
			t.Errorf("unexpected error message: %s", acqErr.Error())
		}
		if errors.Is(acqErr, ErrPermissionDenied) {
			t.Error("expected unknown error not to match permission denied")
		}
	})
	t.Run("classified errors are not wrapped twice", func(t *testing.T) {
		first := classify(StageLocation, location.ErrTimeout)
		if second := classify(StageCamera, first); second != first {
			t.Error("expected classification to be idempotent")
		}
	})
}
