package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hydra-platform/go-hydra-core/internal/cacheinfra"
)

// Config configures a bounded LRU store.
type Config struct {
	// Capacity is the maximum number of entries. Must be greater than 0;
	// invalid values fail construction, they are never clamped.
	Capacity int
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
	)
}

// TTLConfig configures a bounded store with sliding expiry.
type TTLConfig struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int

	// TTL is the inactivity window after which an entry expires. Every
	// successful read re-arms the deadline. Must be greater than 0.
	TTL time.Duration
}

// Validate checks whether the configuration values are valid.
func (c TTLConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
	)
}

// QueryConfig exposes query-cache configuration options for consumers of the
// cache package.
type QueryConfig struct {
	Capacity             int
	NumShards            int
	TTL                  time.Duration
	EvictionPercentage   int
	MissingRecordStorage bool
	EvictionInterval     time.Duration
}

// DefaultQueryConfig returns a QueryConfig populated with sensible defaults.
func DefaultQueryConfig() QueryConfig {
	return fromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c QueryConfig) Validate() error {
	return c.toInternal().Validate()
}

// NewLRU constructs a queryable LRU store with the provided configuration.
func NewLRU[K comparable, V any](cfg Config) (QueryableStore[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cacheinfra.NewLRU[K, V](cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewSliding constructs a sliding-expiry store with the provided configuration.
func NewSliding[K comparable, V any](cfg TTLConfig) (ExpiringStore[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cacheinfra.NewSliding[K, V](cfg.Capacity, cfg.TTL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewQueryCache constructs the default query cache implementation with the
// provided configuration.
func NewQueryCache(cfg QueryConfig) (QueryCache, error) {
	return cacheinfra.NewSturdycQueryCache(cfg.toInternal())
}

func (c QueryConfig) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func fromInternal(cfg cacheinfra.Config) QueryConfig {
	return QueryConfig{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
}
