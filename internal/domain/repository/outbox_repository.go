package repository

import (
	"context"
	"time"

	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
)

// OutboxRepository persists outbox events. Appending happens inside the
// transaction of the state change an event announces; the dispatcher
// reads only committed rows, which is what makes the hand-off between
// stages commit-safe.
type OutboxRepository interface {
	// Append inserts an undispatched event.
	Append(ctx context.Context, e *schedule.Event) error

	// FindUndispatched returns up to limit undispatched events, oldest
	// first.
	FindUndispatched(ctx context.Context, limit int) ([]*schedule.Event, error)

	// MarkDispatched records that an event has been relayed.
	MarkDispatched(ctx context.Context, id string, at time.Time) error
}
