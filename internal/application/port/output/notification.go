package output

import (
	"context"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
)

// NotificationPort delivers processing updates to interested parties
// (frontend push, alerting). Best effort: a notification failure must
// never propagate into pipeline state, so callers log errors and move on.
type NotificationPort interface {
	Notify(ctx context.Context, entryID uuid.UUID, state entry.ProcessingState, message string) error
}
