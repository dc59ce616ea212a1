package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
	sqliterepo "github.com/kalinpl/dreamlog/internal/infrastructure/persistence/sqlite"
	"github.com/kalinpl/dreamlog/internal/testutil"
)

func newTestEntry(t *testing.T) *entry.Entry {
	t.Helper()
	e, err := entry.NewEntry(uuid.New(), time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		"Falling", "I was falling through clouds.")
	require.NoError(t, err)
	return e
}

func TestEntryRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	e.SetMoods("anxious", "relieved")
	require.NoError(t, e.SetVividness(4))
	e.SetLucid(true)
	e.SetTags([]string{"falling", "clouds"})

	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.Find(ctx, e.ID())
	require.NoError(t, err)

	assert.Equal(t, e.ID(), got.ID())
	assert.Equal(t, e.UserID(), got.UserID())
	assert.Equal(t, "Falling", got.Title())
	assert.Equal(t, "anxious", got.MoodInDream())
	assert.Equal(t, "relieved", got.MoodAfterDream())
	assert.Equal(t, 4, got.Vividness())
	assert.True(t, got.Lucid())
	assert.Equal(t, []string{"falling", "clouds"}, got.Tags())
	assert.Equal(t, entry.StateCreated, got.State())
	assert.Equal(t, 0, got.AttemptCount())
}

func TestEntryRepository_Find_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)

	_, err := repo.Find(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)
}

func TestEntryRepository_Transition_CAS(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))

	// Matching from-state succeeds.
	require.NoError(t, repo.Transition(ctx, e.ID(), entry.StateCreated, entry.StateAnalyzingText))

	got, err := repo.Find(ctx, e.ID())
	require.NoError(t, err)
	assert.Equal(t, entry.StateAnalyzingText, got.State())

	// Stale from-state is rejected without touching the row.
	err = repo.Transition(ctx, e.ID(), entry.StateCreated, entry.StateAnalyzingText)
	assert.ErrorIs(t, err, repository.ErrStaleState)

	// Missing entry is distinguished from a stale state.
	err = repo.Transition(ctx, uuid.New(), entry.StateCreated, entry.StateAnalyzingText)
	assert.ErrorIs(t, err, repository.ErrEntryNotFound)
}

func TestEntryRepository_Transition_RejectsIllegalMove(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))

	// Backward moves are rejected up front and reported as stale so
	// executors treat them as already-handled work.
	err := repo.Transition(ctx, e.ID(), entry.StateTextAnalyzed, entry.StateCreated)
	assert.ErrorIs(t, err, repository.ErrStaleState)

	got, findErr := repo.Find(ctx, e.ID())
	require.NoError(t, findErr)
	assert.Equal(t, entry.StateCreated, got.State())
}

func TestEntryRepository_MarkFailed(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))

	require.NoError(t, repo.MarkFailed(ctx, e.ID(), "analysis failed after 8 attempts"))

	got, err := repo.Find(ctx, e.ID())
	require.NoError(t, err)
	assert.Equal(t, entry.StateFailed, got.State())
	assert.Equal(t, "analysis failed after 8 attempts", got.FailureReason())

	// Idempotent on an already-FAILED entry.
	require.NoError(t, repo.MarkFailed(ctx, e.ID(), "second reason"))
	got, _ = repo.Find(ctx, e.ID())
	assert.Equal(t, "analysis failed after 8 attempts", got.FailureReason())
}

func TestEntryRepository_MarkFailed_CompletedIsImmutable(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))
	require.NoError(t, repo.Transition(ctx, e.ID(), entry.StateCreated, entry.StateCompleted))

	err := repo.MarkFailed(ctx, e.ID(), "too late")
	assert.ErrorIs(t, err, repository.ErrStaleState)
}

func TestEntryRepository_SetAttemptCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))

	require.NoError(t, repo.SetAttemptCount(ctx, e.ID(), 3))

	got, err := repo.Find(ctx, e.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, got.AttemptCount())
}

func TestEntryRepository_Save_DoesNotTouchState(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))
	require.NoError(t, repo.Transition(ctx, e.ID(), entry.StateCreated, entry.StateAnalyzingText))

	// Mutate via a stale in-memory copy still in CREATED.
	e.SetTags([]string{"updated"})
	require.NoError(t, repo.Save(ctx, e))

	got, err := repo.Find(ctx, e.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"updated"}, got.Tags())
	assert.Equal(t, entry.StateAnalyzingText, got.State(), "Save must not write the state column")
}

func TestEntryRepository_SaveImageReference(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := sqliterepo.NewEntryRepository(db)
	ctx := context.Background()

	e := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, e))

	at := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)
	require.NoError(t, e.SetImage("dreams/2026/08/abc.png", "https://img/abc.png", at))
	require.NoError(t, repo.Save(ctx, e))

	got, err := repo.Find(ctx, e.ID())
	require.NoError(t, err)
	assert.True(t, got.HasImage())
	assert.Equal(t, "dreams/2026/08/abc.png", got.ImageStorageKey())
	assert.Equal(t, "https://img/abc.png", got.ImageURL())
	require.NotNil(t, got.ImageGeneratedAt())
	assert.Equal(t, at, got.ImageGeneratedAt().UTC())
}
