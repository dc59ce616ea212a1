// Package sqlite implements the domain repository ports on SQLite.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/kalinpl/dreamlog/internal/infrastructure/transaction"
)

// dbExecutor is the subset of *sql.DB and *sql.Tx the repositories use.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// executor returns the ambient transaction when the context carries
// one, the plain connection otherwise.
func executor(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := transaction.TxFromContext(ctx); ok {
		return tx
	}
	return db
}
