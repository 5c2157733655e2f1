package cache

import (
	"context"
	"fmt"
)

// FetchFn is the function signature QueryCache expects when fetching from the
// source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// QueryCache exposes read-through caching for query-shaped results (lists,
// counts, criteria lookups) keyed by serialized strings. It is exported so
// that other packages can provide alternate backends.
type QueryCache interface {
	GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
}

// GetOrFetch is a type-safe wrapper that provides generic support for
// QueryCache backends.
func GetOrFetch[T any](ctx context.Context, qc QueryCache, key string, fetch FetchFn[T]) (T, error) {
	result, err := qc.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := result.(T)
	if !ok {
		var zero T
		// A cached nil interface must not panic the assertion; it maps to
		// T's zero value. Any other type under this key means two callers
		// share a key, and serving the zero value would silently hand back
		// wrong data.
		if result == nil {
			return zero, nil
		}
		return zero, fmt.Errorf("cache: value under key %q has type %T, want %T", key, result, zero)
	}
	return typed, nil
}
