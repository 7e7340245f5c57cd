// Package facade implements the storage facade: it parses client-facing
// keys, then orchestrates the cache and the provider registry so that a
// cache hit never touches an adapter and a cache miss triggers exactly one
// single-flight fetch.
package facade

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-agmon/prism-cache/internal/cache"
	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/record"
)

// ErrProviderNotFound is returned when a key's provider segment does not
// name a configured provider.
type ErrProviderNotFound struct{ Provider string }

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider '%s' not found", e.Provider)
}

// ErrKeyGrammar is returned when a raw key doesn't contain the ':' that
// separates provider from id.
var ErrKeyGrammar = fmt.Errorf("key must match provider:id")

// Facade ties a Registry and a Cache together behind the two operations
// the dispatcher needs.
type Facade struct {
	registry *provider.Registry
	cache    *cache.Cache
}

// New builds a Facade over the given registry and cache. Both are shared,
// immutable-shaped handles: Facade never mutates the registry and only
// ever calls the cache's own concurrency-safe operations.
func New(registry *provider.Registry, c *cache.Cache) *Facade {
	return &Facade{registry: registry, cache: c}
}

// ParseKey splits a raw client key into provider name and entity id. Any
// ':' beyond the first belongs to the id.
func ParseKey(raw string) (providerName, id string, err error) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return "", "", ErrKeyGrammar
	}
	providerName, id = raw[:idx], raw[idx+1:]
	if providerName == "" || id == "" {
		return "", "", ErrKeyGrammar
	}
	return providerName, id, nil
}

// Get resolves raw as provider:id, returning the full record via
// cache-then-adapter orchestration. A nil, nil result means "no such id".
func (f *Facade) Get(ctx context.Context, raw string) (*record.Data, error) {
	providerName, id, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	adapter, ok := f.registry.Resolve(providerName)
	if !ok {
		return nil, &ErrProviderNotFound{Provider: providerName}
	}

	key := cache.NewFingerprint(providerName, id)
	rec, err := f.cache.GetOrFill(ctx, key, func(ctx context.Context) (record.Data, error) {
		// Always fetch the full field set so the cache holds a complete
		// record; later HGETs are satisfied from cache without ever
		// touching the adapter again.
		return adapter.FetchFields(ctx, providerName, id, nil)
	})
	if err != nil {
		return nil, err
	}
	if rec.Empty() {
		return nil, nil
	}
	return &rec, nil
}

// Hget resolves raw as provider:id and projects a single field out of the
// cached record. A nil result means either "no such id" or "no such
// field" — the dispatcher replies with a null bulk either way.
func (f *Facade) Hget(ctx context.Context, raw, field string) (*string, error) {
	rec, err := f.Get(ctx, raw)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	v, ok := rec.Get(field)
	if !ok {
		return nil, nil
	}
	return &v, nil
}
