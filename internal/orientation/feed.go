// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package orientation

import (
	"sync"
)

// Event is either a sample or a failed read of the orientation stream.
type Event struct {
	Sample Sample
	Err    error
}

// Feed fans out orientation events to its subscribers. Each subscriber holds at most one
// pending event: a newer sample replaces one that was not consumed yet. Errors never
// replace a pending sample.
type Feed struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function that ends the subscription.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// subscribers returns the number of active subscriptions.
func (f *Feed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Push converts the reading and publishes it. Unusable readings are published as errors.
func (f *Feed) Push(r Reading) {
	sample, err := r.Sample()
	if err != nil {
		f.Publish(Event{Err: err})
		return
	}
	f.Publish(Event{Sample: sample})
}

// Publish hands ev to every subscriber without blocking.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		deliver(ch, ev)
	}
}

func deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	if ev.Err != nil {
		return
	}
	// Replace the pending event with the newer sample
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
