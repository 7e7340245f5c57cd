package provider

import (
	"context"
	"fmt"
	"sort"
)

// Registry resolves a provider name to its Adapter. It is immutable after
// Build returns: no adapter can be added, removed, or replaced afterward.
type Registry struct {
	byName map[string]Adapter
	order  []string // construction order, for deterministic iteration
}

// Builder accumulates named adapters before sealing them into a Registry.
type Builder struct {
	byName map[string]Adapter
	order  []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]Adapter)}
}

// Add registers name -> adapter. It returns an error if name was already
// registered, enforcing the uniqueness invariant at build time rather than
// silently overwriting.
func (b *Builder) Add(name string, a Adapter) error {
	if _, exists := b.byName[name]; exists {
		return fmt.Errorf("%w: duplicate provider name %q", ErrConfiguration, name)
	}
	b.byName[name] = a
	b.order = append(b.order, name)
	return nil
}

// Build seals the accumulated adapters into an immutable Registry.
func (b *Builder) Build() *Registry {
	byName := make(map[string]Adapter, len(b.byName))
	for name, a := range b.byName {
		byName[name] = a
	}
	return &Registry{
		byName: byName,
		order:  append([]string(nil), b.order...),
	}
}

// Resolve returns the adapter registered under name, and whether it exists.
func (r *Registry) Resolve(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns every registered provider name in construction order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// HealthCheck runs every adapter's HealthCheck concurrently and returns a
// name->error map containing only the providers that reported a failure.
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(r.order))
	for _, name := range r.order {
		name, adapter := name, r.byName[name]
		go func() {
			results <- result{name: name, err: adapter.HealthCheck(ctx)}
		}()
	}
	failures := make(map[string]error)
	for range r.order {
		res := <-results
		if res.err != nil {
			failures[res.name] = res.err
		}
	}
	return failures
}

// SortedNames is a small helper for deterministic log output.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
