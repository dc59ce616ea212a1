package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/analysis"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// AnalysisRepositoryImpl implements repository.AnalysisRepository with
// SQLite.
type AnalysisRepositoryImpl struct {
	db *sql.DB
}

// NewAnalysisRepository creates a SQLite-backed analysis repository.
func NewAnalysisRepository(db *sql.DB) repository.AnalysisRepository {
	return &AnalysisRepositoryImpl{db: db}
}

// Create inserts the analysis artifact. The PRIMARY KEY on entry_id
// enforces the 1:1 relationship.
func (r *AnalysisRepositoryImpl) Create(ctx context.Context, a *analysis.Analysis) error {
	tags, err := json.Marshal(a.Tags())
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	entities, err := json.Marshal(a.Entities())
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	emotions, err := json.Marshal(a.Emotions())
	if err != nil {
		return fmt.Errorf("marshal emotions: %w", err)
	}

	_, err = executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO analyses (entry_id, summary, tags, entities, emotions, interpretation, model_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EntryID().String(),
		a.Summary(),
		string(tags),
		string(entities),
		string(emotions),
		a.Interpretation(),
		a.ModelVersion(),
		a.CreatedAt().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// FindByEntryID loads the analysis for an entry.
func (r *AnalysisRepositoryImpl) FindByEntryID(ctx context.Context, entryID uuid.UUID) (*analysis.Analysis, error) {
	var (
		summary, tagsJSON, entitiesJSON, emotionsJSON string
		interpretation, modelVersion, createdAtStr    string
	)
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT summary, tags, entities, emotions, interpretation, model_version, created_at
		FROM analyses WHERE entry_id = ?`,
		entryID.String(),
	).Scan(&summary, &tagsJSON, &entitiesJSON, &emotionsJSON, &interpretation, &modelVersion, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	var tags, entities []string
	var emotions map[string]float64
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	if err := json.Unmarshal([]byte(emotionsJSON), &emotions); err != nil {
		return nil, fmt.Errorf("unmarshal emotions: %w", err)
	}

	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, err
	}

	return analysis.Reconstruct(entryID, summary, tags, entities, emotions, interpretation, modelVersion, createdAt), nil
}

// ExistsByEntryID answers the analyze stage's idempotency check.
func (r *AnalysisRepositoryImpl) ExistsByEntryID(ctx context.Context, entryID uuid.UUID) (bool, error) {
	var count int
	err := executor(ctx, r.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM analyses WHERE entry_id = ?",
		entryID.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check analysis existence: %w", err)
	}
	return count > 0, nil
}
