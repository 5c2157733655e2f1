package cacheinfra

import "sync"

// LRU is a thread-safe, fixed-capacity cache with least-recently-used
// eviction. Entries are kept in a map for O(1) lookup and in an intrusive
// doubly-linked list ordered from most to least recently touched, so every
// operation including eviction is constant time.
//
// An LRU must be created with [NewLRU]; the zero value is not ready for use.
type LRU[K comparable, V any] struct {
	capacity int
	items    map[K]*lruEntry[K, V]
	head     *lruEntry[K, V] // most recently used
	tail     *lruEntry[K, V] // least recently used
	mu       sync.Mutex
}

// lruEntry is an intrusive doubly-linked list node.
type lruEntry[K comparable, V any] struct {
	key  K
	val  V
	prev *lruEntry[K, V]
	next *lruEntry[K, V]
}

// NewLRU creates an LRU cache with the given capacity.
// A capacity that is not strictly positive is a configuration error.
func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*lruEntry[K, V], capacity),
	}, nil
}

// Get returns the value stored under key and marks it most recently used.
// The second return value reports whether the key was present.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.items[key]
	if !found {
		var zero V
		return zero, false
	}

	c.moveToFront(e)
	return e.val, true
}

// Put inserts or overwrites the value under key and marks it most recently
// used. When the cache is at capacity and key is new, the least recently used
// entry is evicted first.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, found := c.items[key]; found {
		e.val = value
		c.moveToFront(e)
		return
	}

	if len(c.items) >= c.capacity {
		oldest := c.tail
		if oldest != nil {
			delete(c.items, oldest.key)
			c.unlink(oldest)
		}
	}

	e := &lruEntry[K, V]{key: key, val: value}
	c.pushFront(e)
	c.items[key] = e
}

// Remove deletes the entry under key and reports whether one existed.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.items[key]
	if !found {
		return false
	}

	delete(c.items, key)
	c.unlink(e)
	return true
}

// Find returns all values satisfying match. The scan walks the map, not the
// recency list, and never splices entries: a Find has no effect on which key
// is evicted next.
func (c *LRU[K, V]) Find(match func(V) bool) []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []V
	for _, e := range c.items {
		if match(e.val) {
			out = append(out, e.val)
		}
	}
	return out
}

// Len returns the current number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Capacity returns the maximum number of entries the cache holds.
func (c *LRU[K, V]) Capacity() int {
	return c.capacity
}

func (c *LRU[K, V]) moveToFront(e *lruEntry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *LRU[K, V]) pushFront(e *lruEntry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU[K, V]) unlink(e *lruEntry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
