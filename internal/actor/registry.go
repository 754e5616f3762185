package actor

import (
	"fmt"
	"sort"
	"sync"
)

// Config represents actor-specific configuration (opaque to the runtime).
type Config map[string]any

// String returns the string value stored at key, or "" when missing.
func (c Config) String(key string) string {
	if c == nil {
		return ""
	}
	switch v := c[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Factory constructs an actor with the provided configuration.
type Factory func(Config) (Actor, error)

// Registry maintains known actor factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs an actor factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("actor: name is required")
	}
	if factory == nil {
		return fmt.Errorf("actor: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("actor: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Resolve constructs an actor by name.
func (r *Registry) Resolve(name string, cfg Config) (Actor, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("actor: unknown name %s", name)
	}
	a, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("actor: build %s: %w", name, err)
	}
	info := a.Info()
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if info.Name != name {
		return nil, fmt.Errorf("actor: factory %s built actor named %s", name, info.Name)
	}
	return a, nil
}

// Names returns a sorted list of registered actor names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tagged builds every registered actor carrying all of tags, sorted by name.
// configs supplies per-actor configuration keyed by actor name.
func (r *Registry) Tagged(configs map[string]Config, tags ...Tag) ([]Actor, error) {
	var out []Actor
	for _, name := range r.Names() {
		a, err := r.Resolve(name, configs[name])
		if err != nil {
			return nil, err
		}
		if a.Info().HasTags(tags...) {
			out = append(out, a)
		}
	}
	return out, nil
}
