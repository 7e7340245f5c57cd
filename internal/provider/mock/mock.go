// Package mock implements the deterministic synthetic-data adapter used
// for local development and the tests of the dispatcher, facade, provider
// registry and server packages.
package mock

import (
	"context"
	"fmt"
	"strconv"

	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/record"
)

// Adapter is the Mock DatabaseAdapter variant. It never fails: an id
// outside the sample range simply yields an empty record.
type Adapter struct {
	name       string
	sampleSize int
}

var _ provider.Adapter = (*Adapter)(nil)

// New builds a mock adapter for name from its provider settings. The only
// recognized setting is sample_size, a non-negative integer as a string.
func New(name string, settings map[string]string) (*Adapter, error) {
	sizeStr, ok := settings["sample_size"]
	if !ok {
		return nil, fmt.Errorf("%w: mock provider %q missing sample_size", provider.ErrConfiguration, name)
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("%w: mock provider %q sample_size %q must be a non-negative integer", provider.ErrConfiguration, name, sizeStr)
	}
	return &Adapter{name: name, sampleSize: size}, nil
}

func (a *Adapter) Name() string { return a.name }

// HealthCheck always succeeds: the mock adapter has no backend to lose.
func (a *Adapter) HealthCheck(ctx context.Context) error { return nil }

// FetchFields returns a deterministic record when id parses as a
// non-negative integer strictly below sampleSize, else an empty record.
// The full field set is {id, name, email}; values are derived from id by a
// fixed formula so repeated calls are byte-identical.
func (a *Adapter) FetchFields(ctx context.Context, entity, id string, fields []string) (record.Data, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 || n >= a.sampleSize {
		return record.Data{}, nil
	}

	full := record.NewWithCapacity(3)
	full.Set("id", id)
	full.Set("name", "user_"+id)
	full.Set("email", "user_"+id+"@example.com")

	return full.Project(fields), nil
}
