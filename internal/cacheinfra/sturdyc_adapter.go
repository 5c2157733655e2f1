package cacheinfra

import (
	"context"
	"strings"

	"github.com/viccon/sturdyc"
)

// sturdycQueryCache wraps a sturdyc client providing read-through caching
// for query-shaped results (lists, counts, criteria lookups).
type sturdycQueryCache struct {
	client *sturdyc.Client[any]
}

// NewSturdycQueryCache creates a query cache backed by a sturdyc client.
// It validates the configuration and maps its parameters onto sturdyc
// initialization: Capacity, NumShards, TTL and EvictionPercentage go to
// sturdyc.New, the rest become options.
func NewSturdycQueryCache(cfg Config) (*sturdycQueryCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options []sturdyc.Option
	if cfg.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if cfg.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		options...,
	)

	return &sturdycQueryCache{client: client}, nil
}

// GetOrFetch returns the cached value for key, or executes fetch, stores the
// result and returns it. Concurrent fetches for the same key are deduplicated
// by the sturdyc client.
func (s *sturdycQueryCache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	return s.client.GetOrFetch(ctx, key, fetch)
}

// Delete removes a single entry so the next GetOrFetch for that key goes to
// the source of truth.
func (s *sturdycQueryCache) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix. Useful for
// invalidating all cached queries of one method family after a write.
func (s *sturdycQueryCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}
