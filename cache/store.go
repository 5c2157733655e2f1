package cache

// Store is a bounded key-value cache with least-recently-used eviction.
// All operations are safe for concurrent use and appear atomic to callers.
type Store[K comparable, V any] interface {
	// Get returns the value under key and marks it most recently used.
	Get(key K) (V, bool)
	// Put inserts or overwrites, evicting the least recently used entry
	// when the cache is full and key is new.
	Put(key K, value V)
	// Remove deletes the entry and reports whether one existed.
	Remove(key K) bool
	// Len returns the current number of entries.
	Len() int
	// Capacity returns the fixed maximum number of entries.
	Capacity() int
}

// QueryableStore is a Store that additionally supports predicate lookups.
// Find is a pure read: it must not change which entry is evicted next.
type QueryableStore[K comparable, V any] interface {
	Store[K, V]
	Find(match func(V) bool) []V
}

// ExpiringStore is a bounded cache whose entries expire after a period of
// inactivity. Every successful Get extends the entry's deadline by the full
// TTL; expired entries behave as absent and are removed lazily on access.
type ExpiringStore[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Remove(key K) bool
	Len() int
}
