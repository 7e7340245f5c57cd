package delta

import (
	"context"
	"database/sql"
)

// sqlHandle adapts a *sql.DB to TableHandle. *sql.Rows already satisfies
// the Rows interface verbatim (Next/Columns/Scan/Err/Close), so no
// per-row shim is needed — this lets any database/sql driver capable of
// reading a Delta/Iceberg table's SQL endpoint (e.g. a Trino or
// Databricks SQL warehouse driver) act as the injected TableOpener
// without further adaptation.
type sqlHandle struct {
	db *sql.DB
}

func (h *sqlHandle) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (h *sqlHandle) Close() error { return h.db.Close() }

// NewSQLTableOpener returns a TableOpener backed by database/sql, for any
// registered driver whose query surface can address a Delta/Iceberg table
// by name (e.g. a SQL warehouse endpoint fronting the table format). dsn
// is passed straight to sql.Open.
func NewSQLTableOpener(driverName, dsn string) TableOpener {
	return func(ctx context.Context, tableName, tablePath string) (TableHandle, error) {
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &sqlHandle{db: db}, nil
	}
}
