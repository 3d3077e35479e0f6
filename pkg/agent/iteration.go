package agent

const (
	// MaxConsecutiveParseFailures is how many back-to-back malformed
	// oracle replies the loop tolerates before giving up. The first
	// failure triggers a corrective retry that does not consume a turn.
	MaxConsecutiveParseFailures = 2

	// StuckTurnThreshold is the turns_on_task value at which the loop
	// starts watching for a stall on the active task.
	StuckTurnThreshold = 8

	// StuckNoDeltaWindow is how many consecutive turns must pass without
	// a state delta (no new fact, no new ruled-out entry) before the loop
	// forces a reflection.
	StuckNoDeltaWindow = 2
)

// IterationState tracks loop-level bookkeeping across turns: the parse
// failure streak and the progress window used for stuck detection. It is
// owned by a single engine run and is not safe for concurrent use.
type IterationState struct {
	Turn       int
	TurnBudget int

	LastParseFailed          bool
	LastParseError           string
	ConsecutiveParseFailures int

	lastFactCount     int
	lastRuledOutCount int
	noDeltaStreak     int
	reflectionFired   bool
}

// NewIterationState returns bookkeeping for a run with the given budget.
func NewIterationState(turnBudget int) *IterationState {
	return &IterationState{TurnBudget: turnBudget}
}

// BudgetExhausted reports whether every turn in the budget has been spent.
func (s *IterationState) BudgetExhausted() bool {
	return s.Turn >= s.TurnBudget
}

// RecordParseFailure notes a malformed oracle reply. The turn counter is
// not advanced; the caller retries with corrective feedback.
func (s *IterationState) RecordParseFailure(message string) {
	s.LastParseFailed = true
	s.LastParseError = message
	s.ConsecutiveParseFailures++
}

// RecordParseSuccess clears the parse failure streak.
func (s *IterationState) RecordParseSuccess() {
	s.LastParseFailed = false
	s.LastParseError = ""
	s.ConsecutiveParseFailures = 0
}

// ShouldAbortOnParseFailures reports whether the reply format has failed
// too many times in a row to keep going.
func (s *IterationState) ShouldAbortOnParseFailures() bool {
	return s.ConsecutiveParseFailures >= MaxConsecutiveParseFailures
}

// ObserveProgress records the post-merge fact counts for one completed
// turn and reports whether the next prompt must carry the forced
// reflection directive. The directive fires at most once per stuck
// window; any new fact or ruled-out entry resets the window.
func (s *IterationState) ObserveProgress(factCount, ruledOutCount, turnsOnTask int) bool {
	delta := factCount > s.lastFactCount || ruledOutCount > s.lastRuledOutCount
	s.lastFactCount = factCount
	s.lastRuledOutCount = ruledOutCount

	if delta {
		s.noDeltaStreak = 0
		s.reflectionFired = false
		return false
	}

	s.noDeltaStreak++
	if turnsOnTask >= StuckTurnThreshold && s.noDeltaStreak >= StuckNoDeltaWindow && !s.reflectionFired {
		s.reflectionFired = true
		return true
	}
	return false
}
