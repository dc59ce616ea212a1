package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/domain/model/analysis"
)

// AnalysisRepository persists the text-analysis artifact, keyed 1:1 by
// entry ID.
type AnalysisRepository interface {
	// Create inserts the analysis for an entry. At most one analysis
	// may exist per entry.
	Create(ctx context.Context, a *analysis.Analysis) error

	// FindByEntryID loads the analysis for an entry. Returns
	// ErrAnalysisNotFound if missing.
	FindByEntryID(ctx context.Context, entryID uuid.UUID) (*analysis.Analysis, error)

	// ExistsByEntryID is the idempotency check for the analyze stage:
	// when true, the stage must not re-run.
	ExistsByEntryID(ctx context.Context, entryID uuid.UUID) (bool, error)
}
