package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterationState_ShouldAbortOnParseFailures(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     bool
	}{
		{
			name:     "zero failures - no abort",
			failures: 0,
			want:     false,
		},
		{
			name:     "one failure - no abort, corrective retry instead",
			failures: 1,
			want:     false,
		},
		{
			name:     "at threshold - abort",
			failures: MaxConsecutiveParseFailures,
			want:     true,
		},
		{
			name:     "above threshold - abort",
			failures: MaxConsecutiveParseFailures + 1,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &IterationState{ConsecutiveParseFailures: tt.failures}
			assert.Equal(t, tt.want, state.ShouldAbortOnParseFailures())
		})
	}
}

func TestIterationState_ParseFailureBookkeeping(t *testing.T) {
	state := NewIterationState(10)

	state.RecordParseFailure("not json")
	assert.True(t, state.LastParseFailed)
	assert.Equal(t, "not json", state.LastParseError)
	assert.Equal(t, 1, state.ConsecutiveParseFailures)

	state.RecordParseSuccess()
	assert.False(t, state.LastParseFailed)
	assert.Empty(t, state.LastParseError)
	assert.Equal(t, 0, state.ConsecutiveParseFailures)
}

func TestIterationState_BudgetExhausted(t *testing.T) {
	state := NewIterationState(2)

	assert.False(t, state.BudgetExhausted())
	state.Turn = 1
	assert.False(t, state.BudgetExhausted())
	state.Turn = 2
	assert.True(t, state.BudgetExhausted())
}

func TestIterationState_ObserveProgress(t *testing.T) {
	t.Run("fires once after threshold with two stale turns", func(t *testing.T) {
		state := NewIterationState(30)

		// Early turns without deltas never fire below the task threshold.
		assert.False(t, state.ObserveProgress(1, 0, 3))
		assert.False(t, state.ObserveProgress(1, 0, 4))

		// A delta resets the streak.
		assert.False(t, state.ObserveProgress(2, 0, 5))

		// Past the threshold, the first stale turn is tolerated and the
		// second forces reflection.
		assert.False(t, state.ObserveProgress(2, 0, 8))
		assert.True(t, state.ObserveProgress(2, 0, 9))

		// Still stuck, but the directive fired already for this window.
		assert.False(t, state.ObserveProgress(2, 0, 10))
		assert.False(t, state.ObserveProgress(2, 0, 11))
	})

	t.Run("new fact opens a fresh window", func(t *testing.T) {
		state := NewIterationState(30)

		assert.False(t, state.ObserveProgress(0, 0, 8))
		assert.True(t, state.ObserveProgress(0, 0, 9))

		// Progress resumes, then stalls again long enough to re-fire.
		assert.False(t, state.ObserveProgress(1, 0, 10))
		assert.False(t, state.ObserveProgress(1, 0, 11))
		assert.True(t, state.ObserveProgress(1, 0, 12))
	})

	t.Run("ruled out entries count as progress", func(t *testing.T) {
		state := NewIterationState(30)

		assert.False(t, state.ObserveProgress(0, 0, 8))
		assert.False(t, state.ObserveProgress(0, 1, 9))
		assert.False(t, state.ObserveProgress(0, 1, 10))
		assert.True(t, state.ObserveProgress(0, 1, 11))
	})
}
