// Package repository defines the persistence ports consumed by the
// application layer. Implementations live under
// internal/infrastructure/persistence.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
)

// EntryRepository persists journal entries and their processing record.
//
// All methods participate in an ambient transaction when the context
// carries one (see internal/infrastructure/transaction).
type EntryRepository interface {
	// Create inserts a new entry in state CREATED.
	Create(ctx context.Context, e *entry.Entry) error

	// Find loads an entry by ID. Returns ErrEntryNotFound if missing.
	Find(ctx context.Context, id uuid.UUID) (*entry.Entry, error)

	// Save updates an entry's mutable fields (moods, tags, attempt
	// count, failure reason, image reference). It does not change the
	// processing state; state moves only through Transition and
	// MarkFailed.
	Save(ctx context.Context, e *entry.Entry) error

	// Transition performs a compare-and-swap state change: it succeeds
	// only if the stored state equals from. Returns ErrStaleState when
	// the stored state differs and ErrEntryNotFound when the entry is
	// gone.
	Transition(ctx context.Context, id uuid.UUID, from, to entry.ProcessingState) error

	// SetAttemptCount persists the attempt counter for the current stage.
	SetAttemptCount(ctx context.Context, id uuid.UUID, count int) error

	// MarkFailed moves the entry to FAILED and records the reason.
	// Idempotent: marking an already-FAILED entry is a no-op. Returns
	// ErrStaleState when the entry is COMPLETED.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
