// Package schedule holds the pipeline's durable work items: scheduled
// tasks consumed by the scheduler and outbox events produced alongside
// committed state changes.
package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TaskKind identifies which pipeline stage a task executes.
type TaskKind string

const (
	TaskKindAnalyze       TaskKind = "ANALYZE"
	TaskKindGenerateImage TaskKind = "GENERATE_IMAGE"
)

// IsValid reports whether k is a known task kind.
func (k TaskKind) IsValid() bool {
	return k == TaskKindAnalyze || k == TaskKindGenerateImage
}

// Task is a durable work item. At most one task per (kind, entry) pair
// exists at a time; the attempt counter that bounds retries lives on the
// entry, not here.
type Task struct {
	id        string
	kind      TaskKind
	entryID   uuid.UUID
	notBefore time.Time
	attempt   int
	createdAt time.Time
}

// NewTask creates a task due at notBefore.
func NewTask(kind TaskKind, entryID uuid.UUID, notBefore time.Time) (*Task, error) {
	if !kind.IsValid() {
		return nil, errors.New("invalid task kind: " + string(kind))
	}
	if entryID == uuid.Nil {
		return nil, errors.New("entry id cannot be empty")
	}
	return &Task{
		id:        ulid.Make().String(),
		kind:      kind,
		entryID:   entryID,
		notBefore: notBefore.UTC(),
		createdAt: time.Now().UTC(),
	}, nil
}

// ReconstructTask rebuilds a task from stored data.
func ReconstructTask(id string, kind TaskKind, entryID uuid.UUID, notBefore time.Time, attempt int, createdAt time.Time) *Task {
	return &Task{
		id:        id,
		kind:      kind,
		entryID:   entryID,
		notBefore: notBefore,
		attempt:   attempt,
		createdAt: createdAt,
	}
}

func (t *Task) ID() string           { return t.id }
func (t *Task) Kind() TaskKind       { return t.kind }
func (t *Task) EntryID() uuid.UUID   { return t.entryID }
func (t *Task) NotBefore() time.Time { return t.notBefore }
func (t *Task) Attempt() int         { return t.attempt }
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// Key is the single-flight claim key: one concurrent execution per
// (kind, entry) pair.
func (t *Task) Key() string {
	return string(t.kind) + ":" + t.entryID.String()
}

// IsDue reports whether the task is eligible for execution at now.
func (t *Task) IsDue(now time.Time) bool {
	return !t.notBefore.After(now)
}
