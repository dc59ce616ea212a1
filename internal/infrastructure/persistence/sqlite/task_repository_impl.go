package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// TaskRepositoryImpl implements repository.TaskRepository with SQLite.
type TaskRepositoryImpl struct {
	db *sql.DB
}

// NewTaskRepository creates a SQLite-backed task repository.
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

// Schedule inserts a task. The UNIQUE(task_kind, entry_id) constraint
// plus the upsert keeps at most one live task per pair: a duplicate
// schedule refreshes notBefore instead of piling up rows.
func (r *TaskRepositoryImpl) Schedule(ctx context.Context, t *schedule.Task) error {
	_, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, task_kind, entry_id, not_before, attempt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_kind, entry_id) DO UPDATE SET not_before = excluded.not_before`,
		t.ID(),
		string(t.Kind()),
		t.EntryID().String(),
		t.NotBefore().Format(time.RFC3339),
		t.Attempt(),
		t.CreatedAt().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert scheduled task: %w", err)
	}
	return nil
}

// FindDue returns tasks eligible for execution, oldest first.
func (r *TaskRepositoryImpl) FindDue(ctx context.Context, now time.Time, limit int) ([]*schedule.Task, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, task_kind, entry_id, not_before, attempt, created_at
		FROM scheduled_tasks
		WHERE not_before <= ?
		ORDER BY not_before ASC
		LIMIT ?`,
		now.UTC().Format(time.RFC3339),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*schedule.Task
	for rows.Next() {
		var (
			id, kindStr, entryStr, notBeforeStr, createdAtStr string
			attempt                                           int
		)
		if err := rows.Scan(&id, &kindStr, &entryStr, &notBeforeStr, &attempt, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		entryID, err := uuid.Parse(entryStr)
		if err != nil {
			return nil, fmt.Errorf("parse entry id: %w", err)
		}
		notBefore, err := parseTime(notBeforeStr)
		if err != nil {
			return nil, err
		}
		createdAt, err := parseTime(createdAtStr)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, schedule.ReconstructTask(id, schedule.TaskKind(kindStr), entryID, notBefore, attempt, createdAt))
	}
	return tasks, rows.Err()
}

// Reschedule pushes a failed task's notBefore forward.
func (r *TaskRepositoryImpl) Reschedule(ctx context.Context, id string, notBefore time.Time, attempt int) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE scheduled_tasks SET not_before = ?, attempt = ? WHERE id = ?`,
		notBefore.UTC().Format(time.RFC3339),
		attempt,
		id,
	)
	if err != nil {
		return fmt.Errorf("reschedule task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}

// Delete removes a finished task. Deleting a missing task is a no-op.
func (r *TaskRepositoryImpl) Delete(ctx context.Context, id string) error {
	_, err := executor(ctx, r.db).ExecContext(ctx,
		"DELETE FROM scheduled_tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
