// Package testutil provides shared helpers for package tests.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	sqliterepo "github.com/kalinpl/dreamlog/internal/infrastructure/persistence/sqlite"
)

// NewTestDB opens a private in-memory SQLite database with the full
// schema applied. The handle is closed via t.Cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	// A single connection keeps the in-memory database alive for the
	// whole test.
	db.SetMaxOpenConns(1)

	if err := sqliterepo.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}
