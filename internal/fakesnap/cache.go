// Package fakesnap provides an in-memory snapshot cache for tests.
package fakesnap

import (
	"context"
	"sync"
	"time"
)

// Cache is an in-memory snapcache.Cache with a controllable clock.
type Cache struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]entry
}

type entry struct {
	data []byte
	exp  time.Time
}

// New returns a fresh in-memory cache.
func New() *Cache {
	return &Cache{
		now:     time.Now(),
		entries: map[string]entry{},
	}
}

// Advance moves the internal clock forward (useful for deterministic tests).
func (c *Cache) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Get returns the cached bytes for key, if still live.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e.data, true, nil
}

// Put stores data under key for at most ttl.
func (c *Cache) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		data: append([]byte(nil), data...),
		exp:  c.now.Add(ttl),
	}
	return nil
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	return len(c.entries)
}

func (c *Cache) evictExpired() {
	for key, e := range c.entries {
		if !e.exp.After(c.now) {
			delete(c.entries, key)
		}
	}
}
