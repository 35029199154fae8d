// Package loader builds a bot from YAML component definitions.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"mewbot/internal/core"
	"mewbot/internal/metrics"
	"mewbot/internal/store"
)

var (
	// ErrUnknownImplementation is returned for an implementation name that
	// was never registered.
	ErrUnknownImplementation = errors.New("unknown implementation")
	// ErrDuplicateImplementation is returned when a name is registered twice.
	ErrDuplicateImplementation = errors.New("implementation already registered")
	// ErrKindMismatch is returned when a block's kind differs from the kind
	// its implementation was registered with.
	ErrKindMismatch = errors.New("kind does not match implementation")
)

// Dependencies are shared services handed to components at build time.
type Dependencies struct {
	Store   store.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Validator is implemented by components that can check their decoded
// properties.
type Validator interface {
	Validate() error
}

// Initializer is implemented by components that need Dependencies.
type Initializer interface {
	Init(deps Dependencies) error
}

// Registration describes one implementation available to YAML definitions.
type Registration struct {
	Name        string
	Kind        core.ComponentKind
	Description string
	Type        reflect.Type
	factory     func() core.Component
}

// Registry maps implementation names to constructors.
type Registry struct {
	mu   sync.RWMutex
	regs map[string]Registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regs: map[string]Registration{}}
}

// Register makes *T available under name. *T must implement the interface
// of kind; properties are decoded into a fresh *T for every block.
func Register[T any](r *Registry, kind core.ComponentKind, name, description string) error {
	t := reflect.TypeFor[*T]()
	if err := core.Implements(kind, t); err != nil {
		return fmt.Errorf("cannot register %s as %s: %w", name, kind, err)
	}
	return r.add(Registration{
		Name:        name,
		Kind:        kind,
		Description: description,
		Type:        t,
		factory:     func() core.Component { return new(T) },
	})
}

// MustRegister is Register that panics on error.
func MustRegister[T any](r *Registry, kind core.ComponentKind, name, description string) {
	if err := Register[T](r, kind, name, description); err != nil {
		panic(err)
	}
}

func (r *Registry) add(reg Registration) error {
	if reg.Name == "" {
		return errors.New("implementation name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.regs[reg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateImplementation, reg.Name)
	}
	r.regs[reg.Name] = reg
	return nil
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[name]
	return reg, ok
}

// Names lists the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.regs))
	for name := range r.regs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registrations lists every registration, sorted by kind then name.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Build creates the component described by block: a fresh instance of its
// implementation with the properties decoded into it, validated and
// initialised.
func (r *Registry) Build(block core.ConfigBlock, deps Dependencies) (core.Component, error) {
	reg, ok := r.Lookup(block.Implementation)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImplementation, block.Implementation)
	}
	kind, err := core.ParseComponentKind(block.Kind)
	if err != nil {
		return nil, err
	}
	if kind != reg.Kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrKindMismatch, reg.Name, reg.Kind, kind)
	}

	c := reg.factory()
	if err := core.CheckComponent(reg.Kind, c); err != nil {
		return nil, fmt.Errorf("%s: %w", reg.Name, err)
	}
	if err := block.Properties.Decode(c); err != nil {
		return nil, fmt.Errorf("%s: %w", reg.Name, err)
	}
	if v, ok := c.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%s: invalid properties: %w", reg.Name, err)
		}
	}
	if i, ok := c.(Initializer); ok {
		if err := i.Init(deps); err != nil {
			return nil, fmt.Errorf("%s: %w", reg.Name, err)
		}
	}
	return c, nil
}
