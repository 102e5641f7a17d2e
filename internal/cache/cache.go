// Package cache provides a bounded in-memory result cache with per-entry expiry.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size-bounded LRU cache whose entries also expire after a TTL.
// Expired entries are never returned and are swept by the underlying LRU in
// the background. Every Clear starts a new generation, so a value computed
// before a Clear can be kept out with SetIfGeneration.
// The zero value is not usable; create one with New.
type Cache[V any] struct {
	mu         sync.Mutex
	lru        *expirable.LRU[string, entry[V]]
	ttl        time.Duration
	generation uint64
	expired    atomic.Int64
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// New returns a cache holding at most size entries, each valid for ttl.
// A size below 1 is treated as 1; a non-positive ttl disables expiry.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size < 1 {
		size = 1
	}
	c := &Cache[V]{ttl: ttl}
	c.lru = expirable.NewLRU[string, entry[V]](size, c.onEvict, ttl)
	return c
}

// onEvict counts entries dropped because their TTL ran out, as opposed to
// size evictions and explicit clears.
func (c *Cache[V]) onEvict(_ string, e entry[V]) {
	if c.ttl > 0 && time.Since(e.storedAt) >= c.ttl {
		c.expired.Add(1)
	}
}

// Get returns the value stored under key if it exists and has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{value: value, storedAt: time.Now()})
}

// Generation returns the current generation. Read it before computing a value
// and pass it to SetIfGeneration.
func (c *Cache[V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfGeneration stores value only when no Clear happened since gen was read.
// It reports whether the value was stored.
func (c *Cache[V]) SetIfGeneration(gen uint64, key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.lru.Add(key, entry[V]{value: value, storedAt: time.Now()})
	return true
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge returns how many entries expired since the previous call.
func (c *Cache[V]) Purge() int {
	return int(c.expired.Swap(0))
}

// Clear drops every entry and starts a new generation.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lru.Purge()
}
