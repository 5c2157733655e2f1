package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrDuplicate is returned when a factory name is registered twice.
	ErrDuplicate = errors.New("factory already registered")
	// ErrNotRegistered is returned when resolving an unknown factory name.
	ErrNotRegistered = errors.New("factory not registered")
)

// Factory builds a component from the container's shared dependencies.
type Factory func(c *Container) (any, error)

// Registry maps component names to factories so request handlers can resolve
// repositories and services by entity name at runtime.
type Registry struct {
	container *Container
	factories *xsync.MapOf[string, Factory]
}

// NewRegistry creates an empty registry bound to the container.
func NewRegistry(c *Container) *Registry {
	return &Registry{
		container: c,
		factories: xsync.NewMapOf[string, Factory](),
	}
}

// Register adds a named factory. Names are registered once; a second
// registration under the same name fails.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register %q: nil factory", name)
	}
	if _, loaded := r.factories.LoadOrStore(name, factory); loaded {
		return fmt.Errorf("register %q: %w", name, ErrDuplicate)
	}
	return nil
}

// Resolve invokes the named factory with the registry's container.
func (r *Registry) Resolve(name string) (any, error) {
	factory, ok := r.factories.Load(name)
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", name, ErrNotRegistered)
	}
	return factory(r.container)
}

// Names returns the registered factory names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.factories.Size())
	r.factories.Range(func(name string, _ Factory) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
