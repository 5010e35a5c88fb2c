// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wneessen/incident-ar/internal/logger"
)

var ErrSourceRequired = errors.New("report source is required")

// Store holds the current list of reports and notifies listeners whenever it was refreshed.
type Store struct {
	source Source
	logger *logger.Logger

	mu        sync.RWMutex
	reports   []Report
	listeners map[int]func([]Report)
	nextID    int
}

// NewStore returns an empty Store backed by source.
func NewStore(source Source, log *logger.Logger) (*Store, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	return &Store{
		source:    source,
		logger:    log,
		listeners: make(map[int]func([]Report)),
	}, nil
}

// Refresh loads the reports from the source and notifies the listeners. Partially converted
// results are kept; the previous list stays in place if the source failed completely.
func (s *Store) Refresh(ctx context.Context) error {
	list, err := s.source.List(ctx)
	if err != nil && list == nil {
		return fmt.Errorf("failed to list reports from %s: %w", s.source.Name(), err)
	}
	if err != nil {
		s.logger.Warn("some reports could not be loaded", slog.String("source", s.source.Name()), logger.Err(err))
	}

	s.mu.Lock()
	s.reports = clone(list)
	listeners := make([]func([]Report), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.Debug("reports refreshed", slog.String("source", s.source.Name()), slog.Int("count", len(list)))
	for _, fn := range listeners {
		fn(clone(list))
	}
	return nil
}

// Reports returns a copy of the current list.
func (s *Store) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.reports)
}

// OnChange registers fn to be called with the new list after every refresh. The returned
// function removes the listener.
func (s *Store) OnChange(fn func([]Report)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
