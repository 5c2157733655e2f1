// Package entitycache decorates a go-repository-bun Repository with a
// two-layer read cache.
//
// Identity lookups (GetByID with no criteria) are served from a bounded
// per-entity LRU keyed by the record's id; concurrent misses for the same id
// collapse into a single fetch. Criteria-shaped reads (Get, List, Count,
// GetByIdentifier) are served read-through from a shared query cache under
// deterministic serialized keys.
//
// Writes pass through to the base repository and, on success, update the
// identity layer in place and invalidate the affected query keys. Transaction
// and raw variants bypass both layers so callers always observe their own
// in-flight writes.
package entitycache
