package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
)

func TestAnalyzeExecutor_Success(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	require.NoError(t, err)

	env.mustState(t, e.ID(), entry.StateTextAnalyzed)

	got, err := env.analyses.FindByEntryID(ctx, e.ID())
	require.NoError(t, err)
	assert.NotEmpty(t, got.Summary())

	assert.Equal(t, []schedule.EventKind{schedule.EventAnalysisCompleted}, env.eventKinds(t))
	assert.Len(t, env.ai.AnalyzeCalls, 1)
}

func TestAnalyzeExecutor_ReplayIsIdempotent(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	require.NoError(t, x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID())))
	require.NoError(t, x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID())))

	assert.Len(t, env.ai.AnalyzeCalls, 1, "replay must not call the AI again")
	assert.Len(t, env.eventKinds(t), 1, "replay must not emit a second event")
	env.mustState(t, e.ID(), entry.StateTextAnalyzed)
}

func TestAnalyzeExecutor_ResumesAfterCrashMidStage(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	// Crash simulation: the in-progress marker was committed but the
	// attempt died before producing the artifact.
	require.NoError(t, env.entries.Transition(ctx, e.ID(), entry.StateCreated, entry.StateAnalyzingText))

	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	require.NoError(t, err)

	env.mustState(t, e.ID(), entry.StateTextAnalyzed)
	assert.Len(t, env.ai.AnalyzeCalls, 1)
}

func TestAnalyzeExecutor_CatchesUpStateWhenArtifactExists(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	// First run, then wind the state back to simulate a crash between
	// the artifact commit and anything that observed it.
	require.NoError(t, x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID())))

	// Replay against ANALYZING_TEXT with the artifact already present.
	_, err := env.db.Exec("UPDATE entries SET processing_state = ? WHERE id = ?",
		entry.StateAnalyzingText.String(), e.ID().String())
	require.NoError(t, err)

	require.NoError(t, x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID())))

	env.mustState(t, e.ID(), entry.StateTextAnalyzed)
	assert.Len(t, env.ai.AnalyzeCalls, 1)
}

func TestAnalyzeExecutor_MissingEntryDropsTask(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()

	err := x.Execute(context.Background(), env.taskFor(t, schedule.TaskKindAnalyze, uuid.New()))
	assert.NoError(t, err, "missing entry finishes the task instead of retrying forever")
	assert.Empty(t, env.ai.AnalyzeCalls)
}

func TestAnalyzeExecutor_TerminalEntryDropsTask(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)
	require.NoError(t, env.entries.MarkFailed(ctx, e.ID(), "failed elsewhere"))

	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	assert.NoError(t, err)
	assert.Empty(t, env.ai.AnalyzeCalls)
}

func TestAnalyzeExecutor_FailureCountsAttempt(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	cause := output.NewAIError(output.AIErrorNetwork, "analyze", errors.New("connection reset"))
	env.ai.FailAnalyzeWith(cause)

	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	require.Error(t, err, "retryable failure must surface so the scheduler reschedules")

	got, findErr := env.entries.Find(ctx, e.ID())
	require.NoError(t, findErr)
	assert.Equal(t, 1, got.AttemptCount())
	assert.False(t, got.State().IsTerminal())
	assert.Empty(t, env.eventKinds(t))
}

func TestAnalyzeExecutor_EighthFailureIsTerminal(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	// Seven failed attempts already on record.
	require.NoError(t, env.entries.SetAttemptCount(ctx, e.ID(), 7))
	env.ai.FailAnalyzeWith(output.NewAIError(output.AIErrorRateLimit, "analyze", errors.New("429")))

	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	assert.NoError(t, err, "terminal failure finishes the task, no further retry")

	got, findErr := env.entries.Find(ctx, e.ID())
	require.NoError(t, findErr)
	assert.Equal(t, entry.StateFailed, got.State())
	assert.Equal(t, 8, got.AttemptCount())
	assert.Contains(t, got.FailureReason(), "8 attempts")

	assert.Equal(t, []schedule.EventKind{schedule.EventProcessingFailed}, env.eventKinds(t))
}

func TestAnalyzeExecutor_RetriesUntilBoundThenStops(t *testing.T) {
	env := newPipelineEnv(t)
	x := env.analyzeExecutor()
	ctx := context.Background()
	e := env.createEntry(t)

	for i := 0; i < 8; i++ {
		env.ai.FailAnalyzeWith(output.NewAIError(output.AIErrorNetwork, "analyze", errors.New("down")))
	}

	var finished int
	for i := 0; i < 8; i++ {
		if err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID())); err == nil {
			finished++
		}
	}
	assert.Equal(t, 1, finished, "only the 8th attempt finishes the task (terminally)")
	assert.Len(t, env.ai.AnalyzeCalls, 8, "exactly 8 attempts, never a 9th")

	// A straggler replay after the terminal flip is a no-op.
	require.NoError(t, x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID())))
	assert.Len(t, env.ai.AnalyzeCalls, 8)
}

// stallingAIGateway hangs every call until the attempt context expires,
// like a wedged collaborator with no client-side timeout.
type stallingAIGateway struct{}

func (stallingAIGateway) AnalyzeText(ctx context.Context, content string) (*output.AnalysisResult, error) {
	<-ctx.Done()
	return nil, output.NewAIError(output.AIErrorNetwork, "analyze", ctx.Err())
}

func (stallingAIGateway) GenerateImage(ctx context.Context, prompt string) (*output.GeneratedImage, error) {
	<-ctx.Done()
	return nil, output.NewAIError(output.AIErrorNetwork, "generate-image", ctx.Err())
}

func TestAnalyzeExecutor_TimedOutAttemptIsCounted(t *testing.T) {
	env := newPipelineEnv(t)
	e := env.createEntry(t)
	x := service.NewAnalyzeExecutor(env.entries, env.analyses, env.outbox, env.tm, stallingAIGateway{}, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	require.Error(t, err)

	got, err := env.entries.Find(context.Background(), e.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttemptCount(), "an attempt that ran out its deadline still counts")
	assert.Equal(t, entry.StateAnalyzingText, got.State())
}

func TestAnalyzeExecutor_EighthTimeoutIsTerminal(t *testing.T) {
	env := newPipelineEnv(t)
	e := env.createEntry(t)
	x := service.NewAnalyzeExecutor(env.entries, env.analyses, env.outbox, env.tm, stallingAIGateway{}, 0, nil)
	require.NoError(t, env.entries.SetAttemptCount(context.Background(), e.ID(), 7))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := x.Execute(ctx, env.taskFor(t, schedule.TaskKindAnalyze, e.ID()))
	require.NoError(t, err, "terminal failure drops the task")

	got, err := env.entries.Find(context.Background(), e.ID())
	require.NoError(t, err)
	assert.Equal(t, entry.StateFailed, got.State())
	assert.Equal(t, 8, got.AttemptCount())
	assert.Equal(t, []schedule.EventKind{schedule.EventProcessingFailed}, env.eventKinds(t))
}
