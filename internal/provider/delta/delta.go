// Package delta implements the Delta/Iceberg-table DatabaseAdapter variant.
// No concrete Delta client library ships in this module; TableOpener and
// TableHandle describe only the shape such a client must expose, so any
// SQL-ish table reader can be wired in without touching this package.
package delta

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/record"
)

// idAllowlist rejects any id containing characters outside this set before
// it is substituted into a query template, defending against template
// injection.
var idAllowlist = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Rows is the minimal result-set shape the adapter needs from a table
// query, deliberately mirroring database/sql.Rows so a real Delta/Iceberg
// client can satisfy it with little or no shim code.
type Rows interface {
	Next() bool
	Columns() ([]string, error)
	Scan(dest ...any) error
	Err() error
	Close() error
}

// TableHandle is a live, reusable connection to one Delta table.
type TableHandle interface {
	Query(ctx context.Context, query string) (Rows, error)
	Close() error
}

// TableOpener opens a TableHandle for the given table name and path. It is
// called lazily, at most once per successful open.
type TableOpener func(ctx context.Context, tableName, tablePath string) (TableHandle, error)

// Adapter queries a lazily-opened Delta table handle using a query
// template with one "{}" id placeholder.
type Adapter struct {
	name       string
	tableName  string
	tablePath  string
	queryTmpl  string
	openTable  TableOpener

	mu            sync.Mutex
	handle        TableHandle
	backoff       time.Duration
	nextAttemptAt time.Time
}

var _ provider.Adapter = (*Adapter)(nil)

// New builds a Delta adapter for name from its provider settings:
// delta_table_name, delta_table_path, delta_record_query (containing
// exactly one "{}" placeholder). opener is injected so tests and
// deployments can supply whatever table-reading client is actually
// available.
func New(name string, settings map[string]string, opener TableOpener) (*Adapter, error) {
	tableName := settings["delta_table_name"]
	tablePath := settings["delta_table_path"]
	query := settings["delta_record_query"]
	if tableName == "" || tablePath == "" || query == "" {
		return nil, fmt.Errorf("%w: delta provider %q requires delta_table_name, delta_table_path, delta_record_query", provider.ErrConfiguration, name)
	}
	if strings.Count(query, "{}") != 1 {
		return nil, fmt.Errorf("%w: delta provider %q delta_record_query must contain exactly one {} placeholder", provider.ErrConfiguration, name)
	}
	if opener == nil {
		return nil, fmt.Errorf("%w: delta provider %q has no table opener configured", provider.ErrConfiguration, name)
	}
	return &Adapter{
		name:      name,
		tableName: tableName,
		tablePath: tablePath,
		queryTmpl: query,
		openTable: opener,
		backoff:   initialBackoff,
	}, nil
}

func (a *Adapter) Name() string { return a.name }

// HealthCheck attempts to obtain the table handle, respecting the same
// backoff gate as FetchFields so a flapping table doesn't get hammered by
// the periodic health sweep either.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.handleFor(ctx)
	return err
}

// FetchFields substitutes id into the query template, runs it against the
// lazily-opened table handle, and returns the first row.
func (a *Adapter) FetchFields(ctx context.Context, entity, id string, fields []string) (record.Data, error) {
	if !idAllowlist.MatchString(id) {
		return record.Data{}, fmt.Errorf("%w: id %q contains characters outside [A-Za-z0-9_.-]", provider.ErrMalformedID, id)
	}
	handle, err := a.handleFor(ctx)
	if err != nil {
		return record.Data{}, err
	}

	query := strings.Replace(a.queryTmpl, "{}", id, 1)
	rows, err := handle.Query(ctx, query)
	if err != nil {
		return record.Data{}, provider.NewBackendError(provider.KindDeltaTable, "query "+a.tableName, err)
	}
	defer rows.Close()

	full, found, err := scanFirstRow(rows)
	if err != nil {
		return record.Data{}, provider.NewBackendError(provider.KindDeltaTable, "scan "+a.tableName, err)
	}
	if !found {
		return record.Data{}, nil
	}
	return full.Project(fields), nil
}

// handleFor returns the cached table handle, opening it if this is the
// first use or a previous open has fully backed off. Concurrent callers
// during an open attempt block on mu, matching the "opened lazily on first
// use and reused" contract without allowing duplicate opens.
func (a *Adapter) handleFor(ctx context.Context) (TableHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handle != nil {
		return a.handle, nil
	}
	if !a.nextAttemptAt.IsZero() && time.Now().Before(a.nextAttemptAt) {
		return nil, provider.NewBackendError(provider.KindDeltaTable, "open "+a.tableName,
			fmt.Errorf("backing off until %s", a.nextAttemptAt.Format(time.RFC3339)))
	}

	handle, err := a.openTable(ctx, a.tableName, a.tablePath)
	if err != nil {
		a.nextAttemptAt = time.Now().Add(a.backoff)
		a.backoff *= 2
		if a.backoff > maxBackoff {
			a.backoff = maxBackoff
		}
		return nil, provider.NewBackendError(provider.KindDeltaTable, "open "+a.tableName, err)
	}

	a.handle = handle
	a.backoff = initialBackoff
	a.nextAttemptAt = time.Time{}
	return handle, nil
}

func scanFirstRow(rows Rows) (record.Data, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return record.Data{}, false, err
	}
	if !rows.Next() {
		return record.Data{}, false, rows.Err()
	}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return record.Data{}, false, err
	}

	rec := record.NewWithCapacity(len(cols))
	for i, col := range cols {
		v := raw[i]
		if v == nil {
			continue
		}
		rec.Set(col, stringify(v))
	}
	return rec, true, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
