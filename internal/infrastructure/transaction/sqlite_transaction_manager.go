// Package transaction provides the SQLite transaction manager. The
// open transaction travels in the context so repositories join it
// transparently.
package transaction

import (
	"context"
	"database/sql"
	"fmt"
)

// txKey keys the transaction stored in context.
type txKey struct{}

// SQLiteTransactionManager implements output.TransactionManager over a
// *sql.DB.
type SQLiteTransactionManager struct {
	db *sql.DB
}

// NewSQLiteTransactionManager creates a transaction manager.
func NewSQLiteTransactionManager(db *sql.DB) *SQLiteTransactionManager {
	return &SQLiteTransactionManager{db: db}
}

// InTransaction runs fn inside a transaction carried by the context.
// When the context already carries one, fn joins it and commit/rollback
// stay with the outer call.
func (m *SQLiteTransactionManager) InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TxFromContext retrieves the ambient transaction, if any. Repositories
// use it to decide between the transaction and the plain connection.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
