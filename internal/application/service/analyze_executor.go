package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/domain/model/analysis"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// AnalyzeExecutor runs the text-analysis stage: it calls the AI
// collaborator, persists the analysis artifact and advances the entry
// to TEXT_ANALYZED, emitting ANALYSIS_COMPLETED on commit.
type AnalyzeExecutor struct {
	stageDeps
	analyses repository.AnalysisRepository
	ai       output.AIGateway
}

// NewAnalyzeExecutor wires the analyze stage executor.
func NewAnalyzeExecutor(
	entries repository.EntryRepository,
	analyses repository.AnalysisRepository,
	outbox repository.OutboxRepository,
	tx output.TransactionManager,
	ai output.AIGateway,
	maxAttempts int,
	log Logger,
) *AnalyzeExecutor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = NopLogger{}
	}
	return &AnalyzeExecutor{
		stageDeps: stageDeps{
			entries:     entries,
			outbox:      outbox,
			tx:          tx,
			maxAttempts: maxAttempts,
			log:         log,
		},
		analyses: analyses,
		ai:       ai,
	}
}

// Kind returns the task kind this executor consumes.
func (x *AnalyzeExecutor) Kind() schedule.TaskKind { return schedule.TaskKindAnalyze }

// Execute runs one analyze attempt for the task's entry.
func (x *AnalyzeExecutor) Execute(ctx context.Context, task *schedule.Task) error {
	entryID := task.EntryID()
	x.log.Info("executing text analysis: entry=%s attempt=%d", entryID, task.Attempt())

	e, err := x.entries.Find(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			x.log.Error("entry deleted, dropping analyze task: entry=%s", entryID)
			return nil
		}
		return fmt.Errorf("load entry: %w", err)
	}
	if e.State().IsTerminal() {
		x.log.Warn("entry already terminal, dropping analyze task: entry=%s state=%s", entryID, e.State())
		return nil
	}

	// Idempotency: the artifact's existence means this stage already
	// ran to completion; a replayed task must not call the AI again.
	exists, err := x.analyses.ExistsByEntryID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		x.log.Info("analysis already exists, skipping: entry=%s", entryID)
		return x.catchUpState(ctx, e)
	}

	switch e.State() {
	case entry.StateCreated:
		if err := x.entries.Transition(ctx, entryID, entry.StateCreated, entry.StateAnalyzingText); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				x.log.Warn("analyze transition lost a race, dropping task: entry=%s", entryID)
				return nil
			}
			return fmt.Errorf("enter analyzing state: %w", err)
		}
	case entry.StateAnalyzingText:
		// Resumed attempt after a crash or timeout; the in-progress
		// marker is already set.
	default:
		x.log.Warn("entry past analyze stage without artifact, dropping task: entry=%s state=%s", entryID, e.State())
		return nil
	}

	result, err := x.ai.AnalyzeText(ctx, e.Content())
	if err != nil {
		return x.registerFailure(ctx, entryID, "text analysis", err)
	}

	art, err := analysis.New(entryID, result.Summary, result.Tags, result.Entities, result.Emotions, result.Interpretation, result.ModelVersion)
	if err != nil {
		return x.registerFailure(ctx, entryID, "text analysis", output.NewAIError(output.AIErrorInvalidResponse, "analyze", err))
	}

	event, err := schedule.NewEvent(schedule.EventAnalysisCompleted, entryID, map[string]string{
		"summary": result.Summary,
	})
	if err != nil {
		return err
	}

	// Artifact, state advance, counter reset and completion event
	// commit together: the next stage can only ever be scheduled
	// against a durable analysis.
	err = x.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if err := x.analyses.Create(txCtx, art); err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
		if err := x.entries.Transition(txCtx, entryID, entry.StateAnalyzingText, entry.StateTextAnalyzed); err != nil {
			return err
		}
		if err := x.entries.SetAttemptCount(txCtx, entryID, 0); err != nil {
			return fmt.Errorf("reset attempt count: %w", err)
		}
		return x.outbox.Append(txCtx, event)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			x.log.Warn("analyze commit lost a race, already handled: entry=%s", entryID)
			return nil
		}
		return x.registerFailure(ctx, entryID, "text analysis", err)
	}

	x.log.Info("text analysis completed: entry=%s model=%s", entryID, result.ModelVersion)
	return nil
}

// catchUpState advances a lagging state when the artifact already
// exists, e.g. after a crash between the artifact commit and the task
// deletion. Stale CAS results mean someone else already advanced it.
func (x *AnalyzeExecutor) catchUpState(ctx context.Context, e *entry.Entry) error {
	if e.State() != entry.StateCreated && e.State() != entry.StateAnalyzingText {
		return nil
	}
	err := x.entries.Transition(ctx, e.ID(), e.State(), entry.StateTextAnalyzed)
	if err != nil && !errors.Is(err, repository.ErrStaleState) {
		return fmt.Errorf("catch up state: %w", err)
	}
	return nil
}
