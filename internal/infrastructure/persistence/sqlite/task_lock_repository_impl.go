package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// TaskLockRepositoryImpl implements the single-flight claim table with
// SQLite. The PRIMARY KEY on lock_key makes acquisition atomic: exactly
// one INSERT wins, everyone else sees a unique-constraint error.
type TaskLockRepositoryImpl struct {
	db *sql.DB
}

// NewTaskLockRepository creates a SQLite-backed task lock repository.
func NewTaskLockRepository(db *sql.DB) repository.TaskLockRepository {
	return &TaskLockRepositoryImpl{db: db}
}

// Acquire claims key for ttl. A stale claim (expired TTL) is removed
// first so crashed workers cannot wedge a task forever.
func (r *TaskLockRepositoryImpl) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	db := executor(ctx, r.db)
	now := time.Now().UTC()

	if _, err := db.ExecContext(ctx,
		"DELETE FROM task_locks WHERE lock_key = ? AND expires_at < ?",
		key, now.Format(time.RFC3339),
	); err != nil {
		return false, fmt.Errorf("clear stale claim: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO task_locks (lock_key, pid, hostname, acquired_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		key,
		os.Getpid(),
		hostname,
		now.Format(time.RFC3339),
		now.Add(ttl).Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert claim: %w", err)
	}
	return true, nil
}

// Release drops a claim.
func (r *TaskLockRepositoryImpl) Release(ctx context.Context, key string) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx,
		"DELETE FROM task_locks WHERE lock_key = ?", key,
	); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// ReleaseExpired drops all expired claims.
func (r *TaskLockRepositoryImpl) ReleaseExpired(ctx context.Context) (int, error) {
	result, err := executor(ctx, r.db).ExecContext(ctx,
		"DELETE FROM task_locks WHERE expires_at < ?",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("release expired claims: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
