package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is returned by VerifySchema when a declared table or column is absent.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Table declares the columns a query layer depends on. Tables may carry
// additional columns; only the declared ones are checked.
type Table struct {
	Name    string
	Columns []string
}

// VerifySchema runs a zero-row select against every declared table. The query
// is dialect-neutral, so it works the same on SQLite and Postgres.
func VerifySchema(ctx context.Context, db *sql.DB, tables []Table) error {
	for _, t := range tables {
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %s: no columns declared", t.Name)
		}
		q := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", strings.Join(t.Columns, ", "), t.Name)
		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("%w: table %s (%s): %w", ErrSchemaMismatch, t.Name, strings.Join(t.Columns, ", "), err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("close schema check rows for %s: %w", t.Name, err)
		}
	}
	return nil
}
