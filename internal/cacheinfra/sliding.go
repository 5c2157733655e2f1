package cacheinfra

import (
	"sync"
	"time"
)

// slidingEntry is an intrusive doubly-linked list node with an expiry
// deadline that is re-armed on every hit.
type slidingEntry[K comparable, V any] struct {
	key      K
	val      V
	deadline time.Time
	prev     *slidingEntry[K, V]
	next     *slidingEntry[K, V]
}

// SlidingCache is a thread-safe, fixed-capacity cache whose entries expire a
// fixed duration after their last access rather than after their creation.
// Every successful Get pushes an entry's deadline out by the full TTL.
// Expired entries are removed lazily by the access that observes them; there
// is no background sweep.
//
// A SlidingCache must be created with [NewSliding]; the zero value is not
// ready for use.
type SlidingCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	items    map[K]*slidingEntry[K, V]
	head     *slidingEntry[K, V] // most recently used
	tail     *slidingEntry[K, V] // least recently used
	mu       sync.Mutex
	timeNow  func() time.Time // for testing
}

// NewSliding creates a sliding-expiry cache with the given capacity and TTL.
// Both must be strictly positive.
func NewSliding[K comparable, V any](capacity int, ttl time.Duration) (*SlidingCache[K, V], error) {
	if capacity <= 0 {
		return nil, &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if ttl <= 0 {
		return nil, &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	return &SlidingCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*slidingEntry[K, V], capacity),
		timeNow:  time.Now,
	}, nil
}

// Get returns the value stored under key if it is present and not expired,
// re-arming its deadline and marking it most recently used. An entry found
// expired is removed before reporting a miss.
func (c *SlidingCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	e, found := c.items[key]
	if !found {
		return zero, false
	}

	now := c.timeNow()
	if now.After(e.deadline) {
		delete(c.items, key)
		c.unlink(e)
		return zero, false
	}

	e.deadline = now.Add(c.ttl)
	c.moveToFront(e)
	return e.val, true
}

// Put inserts or overwrites the value under key with a fresh deadline.
// When the cache is at capacity and key is new, the least recently used
// entry is evicted first.
func (c *SlidingCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, found := c.items[key]; found {
		e.val = value
		e.deadline = c.timeNow().Add(c.ttl)
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

	e := &slidingEntry[K, V]{
		key:      key,
		val:      value,
		deadline: c.timeNow().Add(c.ttl),
	}
	c.pushFront(e)
	c.items[key] = e
}

// Remove deletes the entry under key and reports whether a live entry
// existed. An expired entry counts as absent but is purged on the way out.
func (c *SlidingCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.items[key]
	if !found {
		return false
	}

	expired := c.timeNow().After(e.deadline)
	delete(c.items, key)
	c.unlink(e)
	return !expired
}

// Len returns the number of entries that have not expired. Expired entries
// still held by the map are excluded from the count but not purged.
func (c *SlidingCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.timeNow()
	count := 0
	for _, e := range c.items {
		if !now.After(e.deadline) {
			count++
		}
	}
	return count
}

// Capacity returns the maximum number of entries the cache holds.
func (c *SlidingCache[K, V]) Capacity() int {
	return c.capacity
}

// TTL returns the inactivity window applied to entries.
func (c *SlidingCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// SetTimeNowFunc replaces the clock used for deadlines. This is primarily
// useful for testing. Passing nil resets to time.Now.
func (c *SlidingCache[K, V]) SetTimeNowFunc(f func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f == nil {
		f = time.Now
	}
	c.timeNow = f
}

func (c *SlidingCache[K, V]) moveToFront(e *slidingEntry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *SlidingCache[K, V]) pushFront(e *slidingEntry[K, V]) {
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

func (c *SlidingCache[K, V]) unlink(e *slidingEntry[K, V]) {
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
