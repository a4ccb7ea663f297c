package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LoadStatus distinguishes how a registry read was satisfied, so callers
// and tests can tell "empty because truly empty" from "empty because the
// load failed and the built-in fallback was used".
type LoadStatus string

const (
	StatusLoaded   LoadStatus = "loaded"
	StatusCached   LoadStatus = "cached"
	StatusFallback LoadStatus = "fallback"
)

// IntentSource loads the intent registry from the backing store.
type IntentSource interface {
	LoadIntents(ctx context.Context) ([]Intent, error)
}

// IntentCache is a process-wide, TTL-bounded cache over the intent
// registry. Reads are served from the cached snapshot; a refresh fully
// replaces the snapshot, so concurrent readers never observe a partial
// registry. The clock is injectable for tests.
type IntentCache struct {
	source IntentSource
	ttl    time.Duration
	now    func() time.Time
	onLoad func(LoadStatus)

	mu        sync.RWMutex
	intents   []Intent
	fetchedAt time.Time
	status    LoadStatus
}

func NewIntentCache(source IntentSource, ttl time.Duration) *IntentCache {
	return &IntentCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the cache's clock. Test hook.
func (c *IntentCache) WithClock(now func() time.Time) *IntentCache {
	c.now = now
	return c
}

// OnLoad registers an observer invoked with the load status of every Get.
// Set during wiring, before the cache is shared.
func (c *IntentCache) OnLoad(fn func(LoadStatus)) *IntentCache {
	c.onLoad = fn
	return c
}

// Get returns the registry snapshot, refreshing it when the TTL has
// elapsed. A failed refresh degrades to the built-in intent table rather
// than returning an error; the status reports which path was taken.
func (c *IntentCache) Get(ctx context.Context) ([]Intent, LoadStatus) {
	c.mu.RLock()
	fresh := c.intents != nil && c.now().Sub(c.fetchedAt) < c.ttl
	if fresh {
		intents, status := c.intents, c.status
		c.mu.RUnlock()
		if status == StatusLoaded {
			status = StatusCached
		}
		c.observe(status)
		return intents, status
	}
	c.mu.RUnlock()

	if err := c.Refresh(ctx); err != nil {
		slog.Warn("intent registry load failed, using built-in fallback", "error", err)
		c.mu.Lock()
		c.intents = builtinIntents()
		c.fetchedAt = c.now()
		c.status = StatusFallback
		c.mu.Unlock()
	}

	c.mu.RLock()
	intents, status := c.intents, c.status
	c.mu.RUnlock()
	c.observe(status)
	return intents, status
}

func (c *IntentCache) observe(status LoadStatus) {
	if c.onLoad != nil {
		c.onLoad(status)
	}
}

// Refresh reloads the registry from the source, fully replacing the
// cached snapshot on success.
func (c *IntentCache) Refresh(ctx context.Context) error {
	intents, err := c.source.LoadIntents(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.intents = intents
	c.fetchedAt = c.now()
	c.status = StatusLoaded
	c.mu.Unlock()
	return nil
}

// Invalidate drops the snapshot so the next Get reloads.
func (c *IntentCache) Invalidate() {
	c.mu.Lock()
	c.intents = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
