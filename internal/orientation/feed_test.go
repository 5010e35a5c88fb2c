// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package orientation

import (
	"errors"
	"testing"
)

func heading(h float64) Event {
	return Event{Sample: Sample{HeadingDegrees: h}}
}

func TestFeed_Publish(t *testing.T) {
	t.Run("subscribers receive events", func(t *testing.T) {
		feed := NewFeed()
		sub, unsub := feed.Subscribe()
		defer unsub()

		feed.Publish(heading(42))
		ev := <-sub
		if ev.Sample.HeadingDegrees != 42 {
			t.Errorf("expected heading to be 42, got %f", ev.Sample.HeadingDegrees)
		}
	})
	t.Run("newer samples replace pending ones", func(t *testing.T) {
		feed := NewFeed()
		sub, unsub := feed.Subscribe()
		defer unsub()

		for _, h := range []float64{1, 2, 3} {
			feed.Publish(heading(h))
		}
		ev := <-sub
		if ev.Sample.HeadingDegrees != 3 {
			t.Errorf("expected latest heading 3, got %f", ev.Sample.HeadingDegrees)
		}
		select {
		case ev := <-sub:
			t.Errorf("expected no further event, got %+v", ev)
		default:
		}
	})
	t.Run("errors do not replace pending samples", func(t *testing.T) {
		feed := NewFeed()
		sub, unsub := feed.Subscribe()
		defer unsub()

		feed.Publish(heading(7))
		feed.Publish(Event{Err: errors.New("intentionally failing")})
		ev := <-sub
		if ev.Err != nil || ev.Sample.HeadingDegrees != 7 {
			t.Errorf("expected pending sample to survive, got %+v", ev)
		}
	})
	t.Run("errors are delivered to idle subscribers", func(t *testing.T) {
		feed := NewFeed()
		sub, unsub := feed.Subscribe()
		defer unsub()

		feed.Push(Reading{})
		ev := <-sub
		if !errors.Is(ev.Err, ErrIncompleteReading) {
			t.Errorf("expected error to be %s, got %v", ErrIncompleteReading, ev.Err)
		}
	})
	t.Run("unsubscribed channels are closed and skipped", func(t *testing.T) {
		feed := NewFeed()
		sub, unsub := feed.Subscribe()
		if feed.subscribers() != 1 {
			t.Errorf("expected 1 subscriber, got %d", feed.subscribers())
		}
		unsub()
		unsub()
		feed.Publish(heading(1))
		if _, ok := <-sub; ok {
			t.Error("expected channel to be closed")
		}
		if feed.subscribers() != 0 {
			t.Errorf("expected no subscribers, got %d", feed.subscribers())
		}
	})
}
