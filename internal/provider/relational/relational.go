// Package relational implements the Postgres DatabaseAdapter variant: a
// pooled *sql.DB queried with a parameterized SELECT per request.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/a-agmon/prism-cache/internal/provider"
	"github.com/a-agmon/prism-cache/internal/record"
	"github.com/a-agmon/prism-cache/internal/telemetry"
)

// Adapter queries one Postgres table per configured entity. It owns a
// connection pool and is safe for concurrent use.
type Adapter struct {
	name     string
	db       *sql.DB
	fields   []string
	idColumn string
	logger   telemetry.Logger
}

var _ provider.Adapter = (*Adapter)(nil)

// New opens a connection pool for name from its provider settings:
// user, password, host, port, dbname, fields (a comma-separated ordered
// column list; its first element is the id column unless overridden).
// A nil logger is replaced with telemetry.NopLogger.
func New(name string, settings map[string]string, logger telemetry.Logger) (*Adapter, error) {
	fieldsRaw, ok := settings["fields"]
	if !ok || strings.TrimSpace(fieldsRaw) == "" {
		return nil, fmt.Errorf("%w: postgres provider %q missing fields", provider.ErrConfiguration, name)
	}
	fields := splitAndTrim(fieldsRaw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: postgres provider %q has an empty fields list", provider.ErrConfiguration, name)
	}

	idColumn := settings["id_column"]
	if idColumn == "" {
		idColumn = fields[0]
	}

	dsn, err := buildDSN(name, settings)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres provider %q: %v", provider.ErrConfiguration, name, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	logger = telemetry.Coalesce(logger)

	return &Adapter{name: name, db: db, fields: fields, idColumn: idColumn, logger: logger}, nil
}

func buildDSN(name string, settings map[string]string) (string, error) {
	required := []string{"user", "password", "host", "port", "dbname"}
	for _, k := range required {
		if strings.TrimSpace(settings[k]) == "" {
			return "", fmt.Errorf("%w: postgres provider %q missing %s", provider.ErrConfiguration, name, k)
		}
	}
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		settings["user"], settings["password"], settings["host"], settings["port"], settings["dbname"]), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *Adapter) Name() string { return a.name }

// HealthCheck verifies the pool can still reach Postgres.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return provider.NewBackendError(provider.KindRelational, "ping", err)
	}
	return nil
}

// FetchFields runs "SELECT <fields> FROM <entity> WHERE <idColumn> = $1"
// with id bound as a query parameter, never interpolated into the SQL
// text. entity is the facade-supplied logical collection name (the provider
// name); the Postgres settings carry no table name, so entity is used
// verbatim as the FROM clause target.
func (a *Adapter) FetchFields(ctx context.Context, entity, id string, fields []string) (record.Data, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", strings.Join(a.fields, ", "), entity, a.idColumn)

	rows, err := a.db.QueryContext(ctx, query, id)
	if err != nil {
		return record.Data{}, provider.NewBackendError(provider.KindRelational, "query "+entity, err)
	}
	defer rows.Close()

	full, found, err := scanFirstRow(rows, a.fields)
	if err != nil {
		return record.Data{}, provider.NewBackendError(provider.KindRelational, "scan "+entity, err)
	}
	if !found {
		return record.Data{}, nil
	}
	if rows.Next() {
		a.logger.Warn("query returned multiple rows for id, using the first", telemetry.Fields{
			"entity": entity,
			"id":     id,
		})
	}
	return full.Project(fields), nil
}

func scanFirstRow(rows *sql.Rows, fields []string) (record.Data, bool, error) {
	if !rows.Next() {
		return record.Data{}, false, rows.Err()
	}
	raw := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return record.Data{}, false, err
	}

	rec := record.NewWithCapacity(len(fields))
	for i, f := range fields {
		v := raw[i]
		if v == nil {
			continue // null -> omitted, per the value-stringification rules
		}
		rec.Set(f, stringify(v))
	}
	return rec, true, nil
}

// stringify renders a scanned column value the way the wire format
// expects: numeric types as decimal strings, timestamps as ISO-8601, and
// everything else via its natural string form.
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
