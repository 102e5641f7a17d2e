package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestCache_GetSet(t *testing.T) {
	c := New[int](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("Expected miss on empty cache")
	}

	c.Set("a", 1)
	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Errorf("Expected (1, true), got (%d, %v)", got, ok)
	}

	c.Set("a", 2)
	if got, _ := c.Get("a"); got != 2 {
		t.Errorf("Expected overwritten value 2, got %d", got)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", c.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("Expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Expected size bound 2, got %d", c.Len())
	}
	if removed := c.Purge(); removed != 0 {
		t.Errorf("Expected size evictions not to count as expired, got %d", removed)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[int](10, 50*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("Expected a to expire at TTL")
	}

	c.Set("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected c to be still valid")
	}

	removed := 0
	if !waitFor(t, time.Second, func() bool {
		removed += c.Purge()
		return removed >= 2
	}) {
		t.Errorf("Expected a and b to be swept, purged %d", removed)
	}
}

func TestCache_NoTTL(t *testing.T) {
	c := New[int](1, 0)

	c.Set("a", 1)
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get("a"); !ok {
		t.Error("Expected entry to never expire without TTL")
	}
	if removed := c.Purge(); removed != 0 {
		t.Errorf("Expected nothing to expire, got %d", removed)
	}
}

func TestCache_Clear(t *testing.T) {
	c := New[int](3, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}

// TestCache_SetIfGeneration tests that a value computed before a Clear is not
// stored after it.
//
// WHY: Results are computed outside the lock. When stored prices change while
// a computation is running, storing its result would serve stale data until
// the TTL runs out.
func TestCache_SetIfGeneration(t *testing.T) {
	c := New[int](4, time.Minute)

	gen := c.Generation()
	if !c.SetIfGeneration(gen, "a", 1) {
		t.Error("Expected store within the same generation")
	}

	stale := c.Generation()
	c.Clear()

	if c.SetIfGeneration(stale, "b", 2) {
		t.Error("Expected store to be refused after Clear")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Expected b to stay out of the cache")
	}
	if c.Generation() == stale {
		t.Error("Expected Clear to start a new generation")
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](16, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*j)%32)
				c.Set(key, j)
				c.Get(key)
				if j%25 == 0 {
					c.Clear()
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("Expected at most 16 entries, got %d", c.Len())
	}
}
