// Package cache is a small query cache keyed by slash-separated path segments.
//
// Entries are invalidated by prefix: invalidating "notifications" marks every
// key under it stale without discarding the value, so optimistic updates keep
// patching it until a refetch replaces it. Keys are compared segment-wise, so
// "notifications" does not match "notifications-archive".
package cache

import (
	"strings"
	"sync"
	"time"
)

// Key joins path segments into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

type entry struct {
	value     any
	stale     bool
	updatedAt time.Time
}

// Cache holds query results. A zero staleAfter means entries only go stale on invalidation.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	staleAfter time.Duration
	now        func() time.Time
}

func New(staleAfter time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Get returns the value under key when it is present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.isStale(e) {
		return nil, false
	}
	return e.value, true
}

// Set stores a fresh value under key.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, updatedAt: c.now()}
}

// Update replaces every value under prefix with fn's result, keeping staleness.
// It returns how many entries were visited.
func (c *Cache) Update(prefix string, fn func(key string, value any) any) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if matches(key, prefix) {
			e.value = fn(key, e.value)
			n++
		}
	}
	return n
}

// Invalidate marks every entry under prefix stale and returns how many were marked.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if matches(key, prefix) {
			e.stale = true
			n++
		}
	}
	return n
}

// Remove drops every entry under prefix and returns how many were dropped.
func (c *Cache) Remove(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if matches(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// IsStale reports whether key is absent, invalidated or older than staleAfter.
func (c *Cache) IsStale(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return !ok || c.isStale(e)
}

// Lookup is [Cache.Get] with a type assertion.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func (c *Cache) isStale(e *entry) bool {
	if e.stale {
		return true
	}
	return c.staleAfter > 0 && c.now().Sub(e.updatedAt) >= c.staleAfter
}

func matches(key, prefix string) bool {
	return prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/")
}
