// Package registry wires the runtime's shared components: the session
// manager, the query cache, the key builder and the per-entity identity
// caches. It plays the role a DI container would in a larger framework while
// staying a plain struct with factory helpers.
package registry

import (
	"fmt"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/hydra-platform/go-hydra-core/cache"
	"github.com/hydra-platform/go-hydra-core/entitycache"
	"github.com/hydra-platform/go-hydra-core/session"
)

// DefaultEntityCapacity bounds each per-entity identity cache.
const DefaultEntityCapacity = 500

// Config configures a Container.
type Config struct {
	// EntityCapacity is the size of each per-entity identity cache.
	EntityCapacity int
	// Sessions configures the session manager's sliding-expiry store.
	Sessions cache.TTLConfig
	// Queries configures the shared query cache.
	Queries cache.QueryConfig
}

// DefaultConfig returns the stock runtime configuration.
func DefaultConfig() Config {
	return Config{
		EntityCapacity: DefaultEntityCapacity,
		Sessions: cache.TTLConfig{
			Capacity: session.DefaultCapacity,
			TTL:      session.DefaultTTL,
		},
		Queries: cache.DefaultQueryConfig(),
	}
}

// Container holds singleton instances of the runtime's shared components.
// Per-entity identity caches are created lazily, one per entity name.
type Container struct {
	sessions *session.Manager
	queries  cache.QueryCache
	keys     cache.KeyBuilder
	entities *xsync.MapOf[string, any]
	config   Config
}

// NewContainer builds a container from the provided configuration.
func NewContainer(cfg Config) (*Container, error) {
	if err := (cache.Config{Capacity: cfg.EntityCapacity}).Validate(); err != nil {
		return nil, fmt.Errorf("entity capacity: %w", err)
	}

	sessions, err := session.NewManager(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	queries, err := cache.NewQueryCache(cfg.Queries)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}

	return &Container{
		sessions: sessions,
		queries:  queries,
		keys:     cache.NewKeyBuilder(),
		entities: xsync.NewMapOf[string, any](),
		config:   cfg,
	}, nil
}

// NewContainerWithDefaults builds a container with the stock configuration.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// Sessions returns the singleton session manager.
func (c *Container) Sessions() *session.Manager {
	return c.sessions
}

// Queries returns the singleton query cache.
func (c *Container) Queries() cache.QueryCache {
	return c.queries
}

// Keys returns the singleton key builder.
func (c *Container) Keys() cache.KeyBuilder {
	return c.keys
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// EntityCache returns the identity cache for the named entity, creating it
// on first use. The same name must always be requested with the same type
// parameter.
//
// Go methods cannot have type parameters, so this is a package-level
// function. Example: EntityCache[model.SystemUser](container, "system_user")
func EntityCache[T any](c *Container, name string) (cache.QueryableStore[string, T], error) {
	stored, _ := c.entities.LoadOrCompute(name, func() any {
		store, err := cache.NewLRU[string, T](cache.Config{Capacity: c.config.EntityCapacity})
		if err != nil {
			// capacity was validated at construction time
			panic(err)
		}
		return store
	})

	store, ok := stored.(cache.QueryableStore[string, T])
	if !ok {
		return nil, fmt.Errorf("entity cache %q already registered with a different type", name)
	}
	return store, nil
}

// NewCachedRepository wraps base with the container's cache layers: a named
// identity cache plus the shared query cache and key builder.
//
// Example: NewCachedRepository[model.SystemUser](container, "system_user", baseRepo)
func NewCachedRepository[T any](c *Container, name string, base repository.Repository[T]) (*entitycache.CachedRepository[T], error) {
	entities, err := EntityCache[T](c, name)
	if err != nil {
		return nil, err
	}
	return entitycache.New(name, base, entities, c.queries, c.keys), nil
}
