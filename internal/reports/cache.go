// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package reports

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	Reports []Report
	Err     error
	Expiry  time.Time
}

// CachedSource keeps the last successful result of a Source for a fixed time.
type CachedSource struct {
	source Source
	ttl    time.Duration

	mu    sync.RWMutex
	entry *cacheEntry
}

func NewCachedSource(source Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		source: source,
		ttl:    ttl,
	}
}

func (c *CachedSource) Name() string {
	return "report cache using " + c.source.Name()
}

// List returns the cached reports while they are fresh and queries the source otherwise.
// Failed queries are not cached. A partial result is cached together with the error that
// came with it.
func (c *CachedSource) List(ctx context.Context) ([]Report, error) {
	c.mu.RLock()
	entry := c.entry
	if entry != nil && time.Now().Before(entry.Expiry) {
		list := clone(entry.Reports)
		c.mu.RUnlock()
		return list, entry.Err
	}
	c.mu.RUnlock()

	list, err := c.source.List(ctx)
	if err != nil && list == nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &cacheEntry{
		Reports: clone(list),
		Err:     err,
		Expiry:  time.Now().Add(c.ttl),
	}
	return list, err
}

// Invalidate drops the cached result so the next List queries the source.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

func clone(list []Report) []Report {
	if list == nil {
		return nil
	}
	out := make([]Report, len(list))
	copy(out, list)
	return out
}
