// Package cache provides the caching contracts used across the runtime core.
//
// # Overview
//
// Three families of capability live here:
//
//   - Store / QueryableStore: bounded LRU caches for hot entities keyed by
//     identifier, with an optional predicate scan (Find) that is guaranteed
//     not to disturb recency order.
//   - ExpiringStore: a bounded cache with sliding expiry, used for session
//     data that must survive a window of inactivity and no longer.
//   - QueryCache / KeyBuilder: string-keyed read-through caching for
//     query-shaped results (lists, counts, criteria lookups).
//
// Implementations live in internal/cacheinfra; this package holds the
// interfaces, the configuration structs and the generic helpers so that other
// packages can depend on the capability without the backend.
//
// # Basic Usage
//
//	users, err := cache.NewLRU[string, User](cache.Config{Capacity: 500})
//	if err != nil {
//		return err
//	}
//	users.Put(id, user)
//	if u, ok := users.Get(id); ok {
//		// hot path, no repository round trip
//	}
//
// For query results, build a key and read through:
//
//	kb := cache.NewKeyBuilder()
//	key := kb.Key("List", criteriaArgs...)
//	result, err := cache.GetOrFetch(ctx, queryCache, key, func(ctx context.Context) ([]User, error) {
//		return repo.List(ctx)
//	})
//
// # Key Stability
//
// The default KeyBuilder is deterministic within a process: basic values and
// Stringers serialize to their text form, structs and maps go through JSON
// (sorted keys), and function arguments - criteria callbacks - are identified
// by pointer. Function pointers are NOT stable across processes; a custom
// KeyBuilder is required for any distributed cache backend.
package cache
