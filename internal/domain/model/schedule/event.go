package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// EventKind identifies an outbox event.
type EventKind string

const (
	EventEntryCreated      EventKind = "ENTRY_CREATED"
	EventAnalysisCompleted EventKind = "ANALYSIS_COMPLETED"
	EventImageCompleted    EventKind = "IMAGE_COMPLETED"
	EventProcessingFailed  EventKind = "PROCESSING_FAILED"
)

// IsValid reports whether k is a known event kind.
func (k EventKind) IsValid() bool {
	switch k {
	case EventEntryCreated, EventAnalysisCompleted, EventImageCompleted, EventProcessingFailed:
		return true
	}
	return false
}

// Event is a transactional outbox row. It is appended in the same
// transaction as the state change it announces and relayed by the
// dispatcher only after that transaction has committed, so a signal is
// never delivered for a write that rolled back.
type Event struct {
	id           string
	kind         EventKind
	entryID      uuid.UUID
	payload      map[string]string
	createdAt    time.Time
	dispatchedAt *time.Time
}

// NewEvent creates an undispatched outbox event.
func NewEvent(kind EventKind, entryID uuid.UUID, payload map[string]string) (*Event, error) {
	if !kind.IsValid() {
		return nil, errors.New("invalid event kind: " + string(kind))
	}
	if entryID == uuid.Nil {
		return nil, errors.New("entry id cannot be empty")
	}
	if payload == nil {
		payload = map[string]string{}
	}
	return &Event{
		id:        ulid.Make().String(),
		kind:      kind,
		entryID:   entryID,
		payload:   payload,
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructEvent rebuilds an event from stored data.
func ReconstructEvent(id string, kind EventKind, entryID uuid.UUID, payload map[string]string, createdAt time.Time, dispatchedAt *time.Time) *Event {
	if payload == nil {
		payload = map[string]string{}
	}
	return &Event{
		id:           id,
		kind:         kind,
		entryID:      entryID,
		payload:      payload,
		createdAt:    createdAt,
		dispatchedAt: dispatchedAt,
	}
}

func (e *Event) ID() string                 { return e.id }
func (e *Event) Kind() EventKind            { return e.kind }
func (e *Event) EntryID() uuid.UUID         { return e.entryID }
func (e *Event) Payload() map[string]string { return e.payload }
func (e *Event) CreatedAt() time.Time       { return e.createdAt }

// DispatchedAt returns when the event was relayed, nil if pending.
func (e *Event) DispatchedAt() *time.Time { return e.dispatchedAt }
