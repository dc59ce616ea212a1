package repository

import (
	"context"
	"time"

	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
)

// TaskRepository persists scheduled tasks. The table is pipeline-private:
// tasks are created by the event dispatcher and consumed by the
// scheduler's execution loop.
type TaskRepository interface {
	// Schedule inserts a task. Scheduling a task for a (kind, entry)
	// pair that already has one refreshes its notBefore instead of
	// inserting a duplicate.
	Schedule(ctx context.Context, t *schedule.Task) error

	// FindDue returns up to limit tasks with notBefore <= now, oldest
	// first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*schedule.Task, error)

	// Reschedule pushes a task's notBefore forward after a failed
	// attempt and records the attempt number. Returns ErrTaskNotFound
	// if the task is gone.
	Reschedule(ctx context.Context, id string, notBefore time.Time, attempt int) error

	// Delete removes a completed or terminally failed task.
	Delete(ctx context.Context, id string) error
}
