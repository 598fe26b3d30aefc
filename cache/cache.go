// Package cache is a keyed TTL cache in front of an expensive fetch.
//
// A fresh entry is served directly. An expired entry triggers one fetch per
// key; concurrent callers for the same key either join that fetch or, when
// a stale value exists, get the stale value immediately instead of queueing
// behind a scrape that can take tens of seconds. A failed refresh also
// falls back to the stale value, so a flaky upstream degrades data
// freshness instead of availability.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc produces a fresh value for key.
type FetchFunc[V any] func(ctx context.Context, key string) (V, error)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Cache caches fetch results per key with a fixed TTL.
type Cache[V any] struct {
	ttl   time.Duration
	fetch FetchFunc[V]
	log   *slog.Logger
	// now is the clock, swappable in tests.
	now func() time.Time

	mu       sync.Mutex
	entries  map[string]entry[V]
	inflight map[string]*call[V]
}

// New builds a Cache. ttl must be positive.
func New[V any](ttl time.Duration, fetch FetchFunc[V], log *slog.Logger) *Cache[V] {
	if log == nil {
		log = slog.Default()
	}
	return &Cache[V]{
		ttl:      ttl,
		fetch:    fetch,
		log:      log.With("component", "cache"),
		now:      time.Now,
		entries:  make(map[string]entry[V]),
		inflight: make(map[string]*call[V]),
	}
}

// Get returns the value for key, fetching when the cached entry is absent
// or older than the TTL. The returned time is when the value was fetched.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, time.Time, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.value, e.fetchedAt, nil
	}

	if cl, ok := c.inflight[key]; ok {
		// Someone is already refreshing this key. Serve stale if we have
		// it; otherwise wait for their result.
		if e, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return e.value, e.fetchedAt, nil
		}
		c.mu.Unlock()
		return c.wait(ctx, key, cl)
	}

	return c.refresh(ctx, key)
}

// GetFresh bypasses the TTL and fetches now. Concurrent callers for the
// same key share one fetch.
func (c *Cache[V]) GetFresh(ctx context.Context, key string) (V, time.Time, error) {
	c.mu.Lock()
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return c.wait(ctx, key, cl)
	}
	return c.refresh(ctx, key)
}

// refresh fetches key. Called with c.mu held; releases it.
func (c *Cache[V]) refresh(ctx context.Context, key string) (V, time.Time, error) {
	cl := &call[V]{done: make(chan struct{})}
	c.inflight[key] = cl
	stale, hasStale := c.entries[key]
	c.mu.Unlock()

	value, err := c.fetch(ctx, key)
	fetchedAt := c.now()

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = entry[V]{value: value, fetchedAt: fetchedAt}
		cl.value = value
	} else if hasStale {
		c.log.Warn("refresh failed, serving stale", "key", key, "error", err)
		cl.value = stale.value
		fetchedAt = stale.fetchedAt
		err = nil
	} else {
		cl.err = fmt.Errorf("cache: fetch %s: %w", key, err)
	}
	c.mu.Unlock()
	close(cl.done)

	if cl.err != nil {
		var zero V
		return zero, time.Time{}, cl.err
	}
	return cl.value, fetchedAt, nil
}

func (c *Cache[V]) wait(ctx context.Context, key string, cl *call[V]) (V, time.Time, error) {
	select {
	case <-ctx.Done():
		var zero V
		return zero, time.Time{}, ctx.Err()
	case <-cl.done:
	}
	if cl.err != nil {
		var zero V
		return zero, time.Time{}, cl.err
	}
	c.mu.Lock()
	e := c.entries[key]
	c.mu.Unlock()
	return cl.value, e.fetchedAt, nil
}

// Invalidate drops the entry for key. The next Get fetches.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports how many entries are cached, fresh or stale.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
