package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// OutboxRepositoryImpl implements repository.OutboxRepository with
// SQLite.
type OutboxRepositoryImpl struct {
	db *sql.DB
}

// NewOutboxRepository creates a SQLite-backed outbox repository.
func NewOutboxRepository(db *sql.DB) repository.OutboxRepository {
	return &OutboxRepositoryImpl{db: db}
}

// Append inserts an undispatched event. Callers run this inside the
// transaction of the state change the event announces.
func (r *OutboxRepositoryImpl) Append(ctx context.Context, e *schedule.Event) error {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_kind, entry_id, payload, created_at, dispatched_at)
		VALUES (?, ?, ?, ?, ?, NULL)`,
		e.ID(),
		string(e.Kind()),
		e.EntryID().String(),
		string(payload),
		e.CreatedAt().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FindUndispatched returns pending events, oldest first. ULIDs sort by
// creation time, so ordering by id preserves per-entry event order.
func (r *OutboxRepositoryImpl) FindUndispatched(ctx context.Context, limit int) ([]*schedule.Event, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, event_kind, entry_id, payload, created_at
		FROM outbox_events
		WHERE dispatched_at IS NULL
		ORDER BY id ASC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query undispatched events: %w", err)
	}
	defer rows.Close()

	var events []*schedule.Event
	for rows.Next() {
		var id, kindStr, entryStr, payloadJSON, createdAtStr string
		if err := rows.Scan(&id, &kindStr, &entryStr, &payloadJSON, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entryID, err := uuid.Parse(entryStr)
		if err != nil {
			return nil, fmt.Errorf("parse entry id: %w", err)
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		createdAt, err := parseTime(createdAtStr)
		if err != nil {
			return nil, err
		}
		events = append(events, schedule.ReconstructEvent(id, schedule.EventKind(kindStr), entryID, payload, createdAt, nil))
	}
	return events, rows.Err()
}

// MarkDispatched stamps an event as relayed.
func (r *OutboxRepositoryImpl) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE outbox_events SET dispatched_at = ? WHERE id = ? AND dispatched_at IS NULL`,
		at.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark event dispatched: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return err
	}
	return nil
}
