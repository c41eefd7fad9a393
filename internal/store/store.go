// Package store is the record store: one SQLite table per collection, rows
// keyed by UUIDs. Lookups of a missing row return a nil record and a nil
// error.
package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so the same functions
// can run standalone or inside a caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewID returns a random UUID-v4 string.
func NewID() string {
	return uuid.NewString()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullable turns a nil pointer into SQL NULL and dereferences the rest.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// affected reports whether the statement touched at least one row.
func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
