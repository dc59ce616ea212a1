package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// EntryRepositoryImpl implements repository.EntryRepository with SQLite.
type EntryRepositoryImpl struct {
	db *sql.DB
}

// NewEntryRepository creates a SQLite-backed entry repository.
func NewEntryRepository(db *sql.DB) repository.EntryRepository {
	return &EntryRepositoryImpl{db: db}
}

// Create inserts a new entry.
func (r *EntryRepositoryImpl) Create(ctx context.Context, e *entry.Entry) error {
	tags, err := json.Marshal(e.Tags())
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO entries (
			id, user_id, date, title, content,
			mood_in_dream, mood_after_dream, vividness, lucid, tags,
			processing_state, attempt_count, failure_reason,
			image_storage_key, image_url, image_generated_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID().String(),
		e.UserID().String(),
		e.Date().UTC().Format(time.RFC3339),
		e.Title(),
		e.Content(),
		e.MoodInDream(),
		e.MoodAfterDream(),
		e.Vividness(),
		boolToInt(e.Lucid()),
		string(tags),
		e.State().String(),
		e.AttemptCount(),
		nullString(e.FailureReason()),
		e.ImageStorageKey(),
		e.ImageURL(),
		nullTime(e.ImageGeneratedAt()),
		e.CreatedAt().Format(time.RFC3339),
		e.UpdatedAt().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Find loads an entry by ID.
func (r *EntryRepositoryImpl) Find(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	row := executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, user_id, date, title, content,
			mood_in_dream, mood_after_dream, vividness, lucid, tags,
			processing_state, attempt_count, failure_reason,
			image_storage_key, image_url, image_generated_at,
			created_at, updated_at
		FROM entries WHERE id = ?`,
		id.String(),
	)
	return scanEntry(row)
}

// Save updates the entry's mutable fields. Processing state is not
// touched here; it moves only through Transition and MarkFailed.
func (r *EntryRepositoryImpl) Save(ctx context.Context, e *entry.Entry) error {
	tags, err := json.Marshal(e.Tags())
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE entries SET
			date = ?, title = ?, content = ?,
			mood_in_dream = ?, mood_after_dream = ?, vividness = ?, lucid = ?, tags = ?,
			attempt_count = ?, failure_reason = ?,
			image_storage_key = ?, image_url = ?, image_generated_at = ?,
			updated_at = ?
		WHERE id = ?`,
		e.Date().UTC().Format(time.RFC3339),
		e.Title(),
		e.Content(),
		e.MoodInDream(),
		e.MoodAfterDream(),
		e.Vividness(),
		boolToInt(e.Lucid()),
		string(tags),
		e.AttemptCount(),
		nullString(e.FailureReason()),
		e.ImageStorageKey(),
		e.ImageURL(),
		nullTime(e.ImageGeneratedAt()),
		e.UpdatedAt().Format(time.RFC3339),
		e.ID().String(),
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrEntryNotFound
	}
	return nil
}

// Transition performs the compare-and-swap state change. The WHERE
// clause on the current state is the whole correctness story: a
// concurrent execution that already advanced the entry makes this a
// zero-row update, reported as ErrStaleState.
func (r *EntryRepositoryImpl) Transition(ctx context.Context, id uuid.UUID, from, to entry.ProcessingState) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal transition %s -> %s: %w", from, to, repository.ErrStaleState)
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE entries SET processing_state = ?, updated_at = ?
		WHERE id = ? AND processing_state = ?`,
		to.String(),
		time.Now().UTC().Format(time.RFC3339),
		id.String(),
		from.String(),
	)
	if err != nil {
		return fmt.Errorf("transition entry state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.Find(ctx, id); errors.Is(err, repository.ErrEntryNotFound) {
			return repository.ErrEntryNotFound
		}
		return repository.ErrStaleState
	}
	return nil
}

// SetAttemptCount persists the stage attempt counter.
func (r *EntryRepositoryImpl) SetAttemptCount(ctx context.Context, id uuid.UUID, count int) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE entries SET attempt_count = ?, updated_at = ? WHERE id = ?`,
		count,
		time.Now().UTC().Format(time.RFC3339),
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("set attempt count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrEntryNotFound
	}
	return nil
}

// MarkFailed diverts a non-terminal entry to FAILED. Idempotent for
// already-FAILED entries.
func (r *EntryRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE entries SET processing_state = ?, failure_reason = ?, updated_at = ?
		WHERE id = ? AND processing_state NOT IN (?, ?)`,
		entry.StateFailed.String(),
		reason,
		time.Now().UTC().Format(time.RFC3339),
		id.String(),
		entry.StateCompleted.String(),
		entry.StateFailed.String(),
	)
	if err != nil {
		return fmt.Errorf("mark entry failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		existing, err := r.Find(ctx, id)
		if err != nil {
			return err
		}
		if existing.State() == entry.StateFailed {
			return nil
		}
		return repository.ErrStaleState
	}
	return nil
}

func scanEntry(row *sql.Row) (*entry.Entry, error) {
	var (
		idStr, userStr, dateStr, title, content   string
		moodIn, moodAfter, tagsJSON, stateStr     string
		vividness, lucid, attemptCount            int
		failureReason, imageGeneratedAt           sql.NullString
		imageStorageKey, imageURL                 string
		createdAtStr, updatedAtStr                string
	)

	err := row.Scan(
		&idStr, &userStr, &dateStr, &title, &content,
		&moodIn, &moodAfter, &vividness, &lucid, &tagsJSON,
		&stateStr, &attemptCount, &failureReason,
		&imageStorageKey, &imageURL, &imageGeneratedAt,
		&createdAtStr, &updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse entry id: %w", err)
	}
	userID, err := uuid.Parse(userStr)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	date, err := parseTime(dateStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedAtStr)
	if err != nil {
		return nil, err
	}

	var generatedAt *time.Time
	if imageGeneratedAt.Valid && imageGeneratedAt.String != "" {
		t, err := parseTime(imageGeneratedAt.String)
		if err != nil {
			return nil, err
		}
		generatedAt = &t
	}

	return entry.Reconstruct(
		id, userID, date, title, content,
		moodIn, moodAfter, vividness, lucid == 1, tags,
		entry.ProcessingState(stateStr), attemptCount, failureReason.String,
		imageStorageKey, imageURL, generatedAt,
		createdAt, updatedAt,
	), nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
