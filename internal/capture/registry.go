package capture

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownDesignation is returned for names nothing was registered under.
var ErrUnknownDesignation = errors.New("unknown designation")

// Factory builds a stage.
type Factory[T any] func() (T, error)

// Registry maps designation strings to stage constructors. Registration is
// explicit; nothing is discovered.
type Registry[T any] struct {
	kind string

	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry for stages of the given kind, used in
// error messages.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: make(map[string]Factory[T])}
}

// Register adds a constructor. Designations are unique.
func (r *Registry[T]) Register(designation string, f Factory[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[designation]; exists {
		return fmt.Errorf("%s %q already registered", r.kind, designation)
	}
	r.factories[designation] = f
	return nil
}

// New builds the stage registered under designation.
func (r *Registry[T]) New(designation string) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[designation]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, designation, ErrUnknownDesignation)
	}
	return f()
}

// Has reports whether designation is registered.
func (r *Registry[T]) Has(designation string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[designation]
	return ok
}

// Designations returns every registered name, sorted.
func (r *Registry[T]) Designations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describer is implemented by stages that can name themselves to users.
type Describer interface {
	Description() string
}
