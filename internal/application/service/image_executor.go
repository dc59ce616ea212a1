package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// GenerateImageExecutor runs the image-generation stage: it renders an
// image from the analysis summary, stores it, records the storage
// reference on the entry and advances it to COMPLETED.
type GenerateImageExecutor struct {
	stageDeps
	analyses repository.AnalysisRepository
	ai       output.AIGateway
	storage  output.ImageStorageGateway
}

// NewGenerateImageExecutor wires the image stage executor.
func NewGenerateImageExecutor(
	entries repository.EntryRepository,
	analyses repository.AnalysisRepository,
	outbox repository.OutboxRepository,
	tx output.TransactionManager,
	ai output.AIGateway,
	storage output.ImageStorageGateway,
	maxAttempts int,
	log Logger,
) *GenerateImageExecutor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = NopLogger{}
	}
	return &GenerateImageExecutor{
		stageDeps: stageDeps{
			entries:     entries,
			outbox:      outbox,
			tx:          tx,
			maxAttempts: maxAttempts,
			log:         log,
		},
		analyses: analyses,
		ai:       ai,
		storage:  storage,
	}
}

// Kind returns the task kind this executor consumes.
func (x *GenerateImageExecutor) Kind() schedule.TaskKind { return schedule.TaskKindGenerateImage }

// Execute runs one image-generation attempt for the task's entry.
func (x *GenerateImageExecutor) Execute(ctx context.Context, task *schedule.Task) error {
	entryID := task.EntryID()
	x.log.Info("executing image generation: entry=%s attempt=%d", entryID, task.Attempt())

	e, err := x.entries.Find(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			x.log.Error("entry deleted, dropping image task: entry=%s", entryID)
			return nil
		}
		return fmt.Errorf("load entry: %w", err)
	}
	if e.State().IsTerminal() {
		x.log.Warn("entry already terminal, dropping image task: entry=%s state=%s", entryID, e.State())
		return nil
	}

	// Idempotency: a non-empty storage key means the image was already
	// generated and stored; never render it twice.
	if e.HasImage() {
		x.log.Info("image already exists, skipping: entry=%s", entryID)
		return x.catchUpState(ctx, e)
	}

	art, err := x.analyses.FindByEntryID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			// Scheduled image work without a committed analysis means a
			// corrupted hand-off; count it like any other failure.
			return x.registerFailure(ctx, entryID, "image generation", err)
		}
		return fmt.Errorf("load analysis: %w", err)
	}

	switch e.State() {
	case entry.StateTextAnalyzed:
		if err := x.entries.Transition(ctx, entryID, entry.StateTextAnalyzed, entry.StateGeneratingImage); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				x.log.Warn("image transition lost a race, dropping task: entry=%s", entryID)
				return nil
			}
			return fmt.Errorf("enter generating state: %w", err)
		}
	case entry.StateGeneratingImage:
		// Resumed attempt; marker already set.
	default:
		x.log.Warn("unexpected state for image stage, dropping task: entry=%s state=%s", entryID, e.State())
		return nil
	}

	prompt := imagePrompt(art.Summary(), art.PrimaryEmotion())
	img, err := x.ai.GenerateImage(ctx, prompt)
	if err != nil {
		return x.registerFailure(ctx, entryID, "image generation", err)
	}

	filename := img.SuggestFilename("dream-" + shortID(entryID.String()))
	stored, err := x.storage.Store(ctx, img.Data, filename, img.MimeType)
	if err != nil {
		return x.registerFailure(ctx, entryID, "image generation", err)
	}
	x.log.Info("image stored: entry=%s key=%s size=%d", entryID, stored.StorageKey, stored.SizeBytes)

	event, err := schedule.NewEvent(schedule.EventImageCompleted, entryID, map[string]string{
		"image_url": stored.URL,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = x.tx.InTransaction(ctx, func(txCtx context.Context) error {
		fresh, err := x.entries.Find(txCtx, entryID)
		if err != nil {
			return err
		}
		if err := fresh.SetImage(stored.StorageKey, stored.URL, now); err != nil {
			return err
		}
		fresh.ResetAttempts()
		if err := x.entries.Save(txCtx, fresh); err != nil {
			return fmt.Errorf("save image reference: %w", err)
		}
		if err := x.entries.Transition(txCtx, entryID, entry.StateGeneratingImage, entry.StateCompleted); err != nil {
			return err
		}
		return x.outbox.Append(txCtx, event)
	})
	if err != nil {
		// The upload is unreferenced once the commit fails; remove it so
		// retries and lost races don't leak objects.
		if delErr := x.storage.Delete(context.WithoutCancel(ctx), stored.StorageKey); delErr != nil {
			x.log.Warn("orphaned image cleanup failed: key=%s: %v", stored.StorageKey, delErr)
		}
		if errors.Is(err, repository.ErrStaleState) {
			x.log.Warn("image commit lost a race, already handled: entry=%s", entryID)
			return nil
		}
		return x.registerFailure(ctx, entryID, "image generation", err)
	}

	x.log.Info("image generation completed: entry=%s", entryID)
	return nil
}

// catchUpState advances a lagging state when the image reference is
// already present.
func (x *GenerateImageExecutor) catchUpState(ctx context.Context, e *entry.Entry) error {
	if e.State() == entry.StateCompleted {
		return nil
	}
	err := x.entries.Transition(ctx, e.ID(), e.State(), entry.StateCompleted)
	if err != nil && !errors.Is(err, repository.ErrStaleState) {
		return fmt.Errorf("catch up state: %w", err)
	}
	return nil
}

// imagePrompt builds the rendering prompt from the analysis output.
func imagePrompt(summary, mood string) string {
	return fmt.Sprintf(
		"A dreamlike, surreal illustration of the following scene: %s. Overall mood: %s. Soft lighting, painterly style, no text.",
		summary, mood,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
