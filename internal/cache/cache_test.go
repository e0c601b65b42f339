package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests control expiry without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(capacity int, ttl time.Duration) (*Cache[string, int], *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := New[string, int](capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)

	if _, ok := c.Get("absent"); ok {
		t.Error("Get() on empty cache = hit, want miss")
	}
}

func TestPutGet(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)

	c.Put("living_room", 1)

	got, ok := c.Get("living_room")
	if !ok {
		t.Fatal("Get() = miss, want hit")
	}
	if got != 1 {
		t.Errorf("Get() = %d, want 1", got)
	}
}

func TestPut_RefreshExisting(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)

	c.Put("living_room", 1)
	c.Put("living_room", 2)

	got, _ := c.Get("living_room")
	if got != 2 {
		t.Errorf("Get() = %d, want refreshed value 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestPut_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the coldest entry.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) = miss, want hit")
	}

	// Capacity 3, fourth insert evicts exactly the LRU key.
	c.Put("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) = hit, want evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Get(%s) = miss, want hit", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestGet_ExpiredEntryIsAbsent(t *testing.T) {
	c, clock := newTestCache(4, time.Minute)

	c.Put("living_room", 1)
	clock.Advance(time.Minute + time.Second)

	// Expired entries are invisible even without a Sweep.
	if _, ok := c.Get("living_room"); ok {
		t.Error("Get() after TTL = hit, want miss")
	}

	// The lazy eviction should also have dropped the entry.
	if c.Len() != 0 {
		t.Errorf("Len() after expired Get = %d, want 0", c.Len())
	}
}

func TestPut_ResetsTTL(t *testing.T) {
	c, clock := newTestCache(4, time.Minute)

	c.Put("living_room", 1)
	clock.Advance(45 * time.Second)
	c.Put("living_room", 2)
	clock.Advance(45 * time.Second)

	// 90s since first Put but only 45s since refresh.
	if _, ok := c.Get("living_room"); !ok {
		t.Error("Get() after refresh = miss, want hit")
	}
}

func TestRemove(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)

	c.Put("living_room", 1)
	c.Remove("living_room")

	if _, ok := c.Get("living_room"); ok {
		t.Error("Get() after Remove = hit, want miss")
	}

	// Removing an absent key is a no-op.
	c.Remove("absent")
}

func TestSweep(t *testing.T) {
	c, clock := newTestCache(8, time.Minute)

	c.Put("old1", 1)
	c.Put("old2", 2)
	clock.Advance(2 * time.Minute)
	c.Put("fresh", 3)

	removed := c.Sweep()
	if removed != 2 {
		t.Errorf("Sweep() = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after Sweep = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("Get(fresh) after Sweep = miss, want hit")
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(4, time.Hour)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get() after Clear = hit, want miss")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](32, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("device-%d", j%40)
				c.Put(key, n)
				c.Get(key)
				if j%50 == 0 {
					c.Sweep()
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 32 {
		t.Errorf("Len() = %d, exceeds capacity 32", c.Len())
	}
}
