package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
)

func newDispatcher(env *pipelineEnv, notifier output.NotificationPort) *service.Dispatcher {
	return service.NewDispatcher(env.outbox, env.tasks, env.tm, notifier, nil, service.DispatcherConfig{}, nil)
}

func appendEvent(t *testing.T, env *pipelineEnv, kind schedule.EventKind, entryID uuid.UUID, payload map[string]string) *schedule.Event {
	t.Helper()
	ev, err := schedule.NewEvent(kind, entryID, payload)
	require.NoError(t, err)
	require.NoError(t, env.outbox.Append(context.Background(), ev))
	return ev
}

func TestDispatcher_EntryCreatedSchedulesAnalyzeTask(t *testing.T) {
	env := newPipelineEnv(t)
	d := newDispatcher(env, nil)
	ctx := context.Background()
	entryID := uuid.New()

	appendEvent(t, env, schedule.EventEntryCreated, entryID, nil)

	require.NoError(t, d.DispatchPending(ctx))

	due, err := env.tasks.FindDue(ctx, time.Now().UTC().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, schedule.TaskKindAnalyze, due[0].Kind())
	assert.Equal(t, entryID, due[0].EntryID())

	assert.Empty(t, env.eventKinds(t), "consumed event is marked dispatched")
}

func TestDispatcher_AnalysisCompletedSchedulesImageTask(t *testing.T) {
	env := newPipelineEnv(t)
	d := newDispatcher(env, nil)
	ctx := context.Background()
	entryID := uuid.New()

	appendEvent(t, env, schedule.EventAnalysisCompleted, entryID, map[string]string{"summary": "s"})

	require.NoError(t, d.DispatchPending(ctx))

	due, err := env.tasks.FindDue(ctx, time.Now().UTC().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, schedule.TaskKindGenerateImage, due[0].Kind())
}

func TestDispatcher_ImageCompletedNotifiesWithoutScheduling(t *testing.T) {
	env := newPipelineEnv(t)
	notifier := &recordingNotifier{}
	d := newDispatcher(env, notifier)
	ctx := context.Background()
	entryID := uuid.New()

	appendEvent(t, env, schedule.EventImageCompleted, entryID, map[string]string{"image_url": "https://img"})

	require.NoError(t, d.DispatchPending(ctx))

	due, err := env.tasks.FindDue(ctx, time.Now().UTC().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	calls := notifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, entryID, calls[0].entryID)
	assert.Equal(t, entry.StateCompleted, calls[0].state)
}

func TestDispatcher_ProcessingFailedNotifiesFailure(t *testing.T) {
	env := newPipelineEnv(t)
	notifier := &recordingNotifier{}
	d := newDispatcher(env, notifier)
	ctx := context.Background()
	entryID := uuid.New()

	appendEvent(t, env, schedule.EventProcessingFailed, entryID, map[string]string{
		"reason": "text analysis failed after 8 attempts: boom", "attempts": "8",
	})

	require.NoError(t, d.DispatchPending(ctx))

	calls := notifier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, entry.StateFailed, calls[0].state)
	assert.Contains(t, calls[0].message, "8 attempts")
	assert.Empty(t, env.eventKinds(t))
}

func TestDispatcher_UnknownKindIsDiscarded(t *testing.T) {
	env := newPipelineEnv(t)
	d := newDispatcher(env, nil)
	ctx := context.Background()

	// Forge an event kind newer code might write; it must not wedge
	// the relay.
	ev := schedule.ReconstructEvent(ulid.Make().String(), schedule.EventKind("ENTRY_ARCHIVED"),
		uuid.New(), nil, time.Now().UTC(), nil)
	require.NoError(t, env.outbox.Append(ctx, ev))

	require.NoError(t, d.DispatchPending(ctx))
	assert.Empty(t, env.eventKinds(t))
}

func TestDispatcher_DuplicateStageEventsCollapse(t *testing.T) {
	env := newPipelineEnv(t)
	d := newDispatcher(env, nil)
	ctx := context.Background()
	entryID := uuid.New()

	appendEvent(t, env, schedule.EventEntryCreated, entryID, nil)
	appendEvent(t, env, schedule.EventEntryCreated, entryID, nil)

	require.NoError(t, d.DispatchPending(ctx))

	due, err := env.tasks.FindDue(ctx, time.Now().UTC().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1, "one live task per (kind, entry) pair")
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	env := newPipelineEnv(t)
	d := service.NewDispatcher(env.outbox, env.tasks, env.tm, nil, nil,
		service.DispatcherConfig{PollInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	appendEvent(t, env, schedule.EventEntryCreated, uuid.New(), nil)

	require.Eventually(t, func() bool {
		return len(env.eventKinds(t)) == 0
	}, time.Second, 5*time.Millisecond, "running relay consumes the event")

	cancel()
	select {
	case <-d.Stopped():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
