package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is the value stored in the backing list. The list front is the most
// recently used end.
type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// Cache is a fixed-capacity LRU cache with per-entry TTL.
//
// Lookups are O(1). An entry past its expiry is treated as absent even
// before Sweep runs; it is lazily evicted on access.
type Cache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	items map[K]*list.Element
	lru   *list.List

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a cache holding at most capacity entries, each living for ttl
// after its last Put.
//
// Parameters:
//   - capacity: Maximum number of entries (must be >= 1)
//   - ttl: Entry lifetime; entries older than this are invisible to Get
//
// Returns:
//   - *Cache: Empty cache ready for use
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element, capacity),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired.
//
// A hit moves the entry to the most-recently-used position. An expired entry
// is evicted and reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	ent := elem.Value.(*entry[K, V])
	if !c.now().Before(ent.expires) {
		c.evict(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return ent.value, true
}

// Put inserts or refreshes the value for key, resetting its TTL.
//
// When the cache is at capacity, the least-recently-used entry is evicted
// first. Expired-but-unswept entries still occupy capacity until touched,
// and sit at the cold end of the LRU order, so they are the first to go.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[K, V])
		ent.value = value
		ent.expires = expires
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.evict(oldest)
		}
	}

	elem := c.lru.PushFront(&entry[K, V]{key: key, value: value, expires: expires})
	c.items[key] = elem
}

// Remove deletes the entry for key if present.
//
// Callers invalidate a device's cached client whenever its address, API key,
// or pairing token changes server-side; a stale client must not keep using
// old credentials.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evict(elem)
	}
}

// Sweep evicts every expired entry and returns how many were removed.
//
// Run periodically to bound memory for keys that are never re-queried;
// correctness does not depend on it because Get lazily expires.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	// Walk from the cold end; stop-free full scan keeps it simple and the
	// capacity is small.
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		ent := elem.Value.(*entry[K, V])
		if !now.Before(ent.expires) {
			c.evict(elem)
			removed++
		}
		elem = prev
	}

	return removed
}

// Len returns the number of entries currently held, including expired
// entries that have not yet been swept or touched.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element, c.capacity)
	c.lru.Init()
}

// evict removes an element. Caller must hold c.mu.
func (c *Cache[K, V]) evict(elem *list.Element) {
	ent := elem.Value.(*entry[K, V])
	delete(c.items, ent.key)
	c.lru.Remove(elem)
}
