package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
)

func TestEntryService_CreateEntryEmitsEventAtomically(t *testing.T) {
	env := newPipelineEnv(t)
	svc := service.NewEntryService(env.entries, env.analyses, env.outbox, env.tm, nil, nil)

	e, err := svc.CreateEntry(context.Background(), service.CreateEntryInput{
		UserID:         uuid.New(),
		Date:           time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Content:        "I wandered a library whose shelves rearranged themselves.",
		MoodInDream:    "curious",
		MoodAfterDream: "calm",
		Vividness:      5,
		Lucid:          true,
		Tags:           []string{"library", "lucid"},
	})
	require.NoError(t, err)

	stored, err := env.entries.Find(context.Background(), e.ID())
	require.NoError(t, err)
	assert.Equal(t, entry.StateCreated, stored.State())
	assert.Equal(t, "I wandered a library whose shelves rearranged themselves.", stored.Content())
	assert.True(t, stored.Lucid())
	assert.Equal(t, []string{"library", "lucid"}, stored.Tags())

	events, err := env.outbox.FindUndispatched(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, schedule.EventEntryCreated, events[0].Kind())
	assert.Equal(t, e.ID(), events[0].EntryID())
}

func TestEntryService_CreateEntryDerivesTitle(t *testing.T) {
	env := newPipelineEnv(t)
	svc := service.NewEntryService(env.entries, env.analyses, env.outbox, env.tm, nil, nil)

	e, err := svc.CreateEntry(context.Background(), service.CreateEntryInput{
		UserID:  uuid.New(),
		Date:    time.Now(),
		Content: "Short dream.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Short dream.", e.Title())
}

func TestEntryService_CreateEntryRejectsInvalidInput(t *testing.T) {
	env := newPipelineEnv(t)
	svc := service.NewEntryService(env.entries, env.analyses, env.outbox, env.tm, nil, nil)

	_, err := svc.CreateEntry(context.Background(), service.CreateEntryInput{
		UserID:  uuid.New(),
		Date:    time.Now(),
		Content: "   ",
	})
	require.Error(t, err)

	events, lookupErr := env.outbox.FindUndispatched(context.Background(), 10)
	require.NoError(t, lookupErr)
	assert.Empty(t, events, "rejected input leaves no trace")
}

func TestEntryService_CreateEntryRateLimited(t *testing.T) {
	env := newPipelineEnv(t)
	limiter := service.NewTokenBucketLimiter(2, time.Hour)
	svc := service.NewEntryService(env.entries, env.analyses, env.outbox, env.tm, limiter, nil)
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := svc.CreateEntry(context.Background(), service.CreateEntryInput{
			UserID:  userID,
			Date:    time.Now(),
			Content: "Within budget.",
		})
		require.NoError(t, err)
	}

	_, err := svc.CreateEntry(context.Background(), service.CreateEntryInput{
		UserID:  userID,
		Date:    time.Now(),
		Content: "Over budget.",
	})
	assert.ErrorIs(t, err, service.ErrRateLimited)
}

func TestTokenBucketLimiter_PerUserBudgets(t *testing.T) {
	limiter := service.NewTokenBucketLimiter(1, time.Hour)
	alice, bob := uuid.New(), uuid.New()

	assert.True(t, limiter.Allow(alice))
	assert.False(t, limiter.Allow(alice), "alice exhausted her budget")
	assert.True(t, limiter.Allow(bob), "budgets are per user")
}
