// Package cache holds small in-process caches.
package cache

import (
	"sync"
	"time"
)

// Cache is a keyed store whose entries expire after their TTL.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[K]entry[V]
}

// NewTTLCache returns a cache that expires entries lazily on read.
func NewTTLCache[K comparable, V any]() Cache[K, V] {
	return NewTTLCacheWithClock[K, V](time.Now)
}

// NewTTLCacheWithClock is NewTTLCache with an injected time source.
func NewTTLCacheWithClock[K comparable, V any](now func() time.Time) Cache[K, V] {
	return &ttlCache[K, V]{now: now, entries: make(map[K]entry[V])}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value; ttl <= 0 keeps it until Delete.
func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
