package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// DefaultMaxAttempts bounds retries per stage. The 8th failed attempt
// flips the entry to FAILED; a 9th attempt never runs.
const DefaultMaxAttempts = 8

// StageExecutor runs one pipeline stage for a scheduled task.
//
// The error contract with the scheduler: a nil return means the task is
// finished and must be deleted (success, idempotent no-op, dropped task
// or terminal failure); a non-nil return means the attempt failed and
// the task must be rescheduled.
type StageExecutor interface {
	Kind() schedule.TaskKind
	Execute(ctx context.Context, task *schedule.Task) error
}

// stageDeps bundles what both stage executors share: attempt accounting
// and the terminal failure path.
type stageDeps struct {
	entries     repository.EntryRepository
	outbox      repository.OutboxRepository
	tx          txManager
	maxAttempts int
	log         Logger
}

// txManager is a narrow alias to avoid importing the output package in
// every call site signature.
type txManager interface {
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// registerFailure records a failed attempt against the entry's counter
// and decides between retry and terminal failure.
//
// Returns the original error when the scheduler should retry, nil when
// the entry has been terminally failed (or is gone) and the task must
// be dropped.
func (d *stageDeps) registerFailure(ctx context.Context, entryID uuid.UUID, stage string, cause error) error {
	// The attempt's own deadline may already be expired (a hung
	// collaborator ran it out); bookkeeping must still land or the
	// attempt bound is never reached.
	ctx = context.WithoutCancel(ctx)

	e, err := d.entries.Find(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			d.log.Error("entry vanished during failure handling, dropping task: entry=%s", entryID)
			return nil
		}
		return fmt.Errorf("load entry for failure handling: %w", err)
	}

	attempts := e.AttemptCount() + 1
	if attempts >= d.maxAttempts {
		return d.failTerminally(ctx, e, stage, attempts, cause)
	}

	if err := d.entries.SetAttemptCount(ctx, entryID, attempts); err != nil {
		return fmt.Errorf("persist attempt count: %w", err)
	}
	d.log.Warn("%s attempt %d/%d failed for entry=%s: %v", stage, attempts, d.maxAttempts, entryID, cause)
	return cause
}

// failTerminally moves the entry to FAILED and emits the failure event,
// all in one transaction. The task is dropped afterwards: nil return.
func (d *stageDeps) failTerminally(ctx context.Context, e *entry.Entry, stage string, attempts int, cause error) error {
	reason := fmt.Sprintf("%s failed after %d attempts: %v", stage, attempts, cause)
	d.log.Error("max attempts reached, marking entry as FAILED: entry=%s reason=%s", e.ID(), reason)

	event, err := schedule.NewEvent(schedule.EventProcessingFailed, e.ID(), map[string]string{
		"reason":   reason,
		"attempts": fmt.Sprintf("%d", attempts),
	})
	if err != nil {
		return err
	}

	txErr := d.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if err := d.entries.SetAttemptCount(txCtx, e.ID(), attempts); err != nil {
			return fmt.Errorf("persist attempt count: %w", err)
		}
		if err := d.entries.MarkFailed(txCtx, e.ID(), reason); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return d.outbox.Append(txCtx, event)
	})
	if txErr != nil {
		if errors.Is(txErr, repository.ErrStaleState) {
			// Entry completed concurrently; nothing left to fail.
			d.log.Warn("terminal failure skipped, entry already terminal: entry=%s", e.ID())
			return nil
		}
		return fmt.Errorf("terminal failure handling: %w", txErr)
	}
	return nil
}
