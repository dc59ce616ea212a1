package entry

// ProcessingState tracks an entry's progress through the AI pipeline.
//
// Legal flow:
//
//	CREATED → ANALYZING_TEXT → TEXT_ANALYZED → GENERATING_IMAGE → COMPLETED
//
// Any non-terminal state may divert to FAILED. COMPLETED and FAILED are
// terminal and immutable.
type ProcessingState string

const (
	StateCreated         ProcessingState = "CREATED"
	StateAnalyzingText   ProcessingState = "ANALYZING_TEXT"
	StateTextAnalyzed    ProcessingState = "TEXT_ANALYZED"
	StateGeneratingImage ProcessingState = "GENERATING_IMAGE"
	StateCompleted       ProcessingState = "COMPLETED"
	StateFailed          ProcessingState = "FAILED"
)

// stateRank orders the forward pipeline. FAILED is outside the ordering.
var stateRank = map[ProcessingState]int{
	StateCreated:         0,
	StateAnalyzingText:   1,
	StateTextAnalyzed:    2,
	StateGeneratingImage: 3,
	StateCompleted:       4,
}

// IsValid reports whether s is a known processing state.
func (s ProcessingState) IsValid() bool {
	if s == StateFailed {
		return true
	}
	_, ok := stateRank[s]
	return ok
}

// IsTerminal reports whether s permits no further transitions.
func (s ProcessingState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether moving from s to next is legal.
// Forward movement along the pipeline is allowed (including catch-up
// jumps past an in-progress marker after a replayed task), as is a
// divert to FAILED from any non-terminal state. Backward movement and
// any transition out of a terminal state are not.
func (s ProcessingState) CanTransitionTo(next ProcessingState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok := stateRank[s]
	if !ok {
		return false
	}
	to, ok := stateRank[next]
	if !ok {
		return false
	}
	return to > from
}

// String returns the state as stored in the database.
func (s ProcessingState) String() string {
	return string(s)
}
