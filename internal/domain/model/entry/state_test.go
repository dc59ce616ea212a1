package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingState_IsValid(t *testing.T) {
	for _, s := range []ProcessingState{
		StateCreated, StateAnalyzingText, StateTextAnalyzed,
		StateGeneratingImage, StateCompleted, StateFailed,
	} {
		assert.True(t, s.IsValid(), "state %s should be valid", s)
	}
	assert.False(t, ProcessingState("PENDING").IsValid())
	assert.False(t, ProcessingState("").IsValid())
}

func TestProcessingState_IsTerminal(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateCreated.IsTerminal())
	assert.False(t, StateAnalyzingText.IsTerminal())
	assert.False(t, StateGeneratingImage.IsTerminal())
}

func TestProcessingState_CanTransitionTo_ForwardFlow(t *testing.T) {
	assert.True(t, StateCreated.CanTransitionTo(StateAnalyzingText))
	assert.True(t, StateAnalyzingText.CanTransitionTo(StateTextAnalyzed))
	assert.True(t, StateTextAnalyzed.CanTransitionTo(StateGeneratingImage))
	assert.True(t, StateGeneratingImage.CanTransitionTo(StateCompleted))
}

func TestProcessingState_CanTransitionTo_CatchUpJumps(t *testing.T) {
	// Replayed tasks may find the in-progress marker already set and
	// jump straight to the stage's end state.
	assert.True(t, StateCreated.CanTransitionTo(StateTextAnalyzed))
	assert.True(t, StateAnalyzingText.CanTransitionTo(StateCompleted))
	assert.True(t, StateGeneratingImage.CanTransitionTo(StateCompleted))
}

func TestProcessingState_CanTransitionTo_Backward(t *testing.T) {
	assert.False(t, StateTextAnalyzed.CanTransitionTo(StateCreated))
	assert.False(t, StateGeneratingImage.CanTransitionTo(StateAnalyzingText))
	assert.False(t, StateAnalyzingText.CanTransitionTo(StateAnalyzingText))
}

func TestProcessingState_CanTransitionTo_FailedDivert(t *testing.T) {
	assert.True(t, StateCreated.CanTransitionTo(StateFailed))
	assert.True(t, StateAnalyzingText.CanTransitionTo(StateFailed))
	assert.True(t, StateGeneratingImage.CanTransitionTo(StateFailed))
}

func TestProcessingState_CanTransitionTo_TerminalIsImmutable(t *testing.T) {
	for _, next := range []ProcessingState{
		StateCreated, StateAnalyzingText, StateTextAnalyzed,
		StateGeneratingImage, StateCompleted, StateFailed,
	} {
		assert.False(t, StateCompleted.CanTransitionTo(next), "COMPLETED -> %s", next)
		assert.False(t, StateFailed.CanTransitionTo(next), "FAILED -> %s", next)
	}
}
