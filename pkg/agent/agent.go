// Package agent implements the bounded Reflect-Strategize-Act loop that
// drives an investigation inside the worker process.
//
// The engine owns the turn budget, the investigation state document, and
// the transcript. Every other concern is injected behind a small interface:
// the oracle that produces the next reply, the executor that runs tools,
// the emitter that publishes progress events, and the prompt builder that
// renders the conversation for the oracle. The interfaces are declared here,
// on the consumer side, so implementations in other packages stay decoupled
// from the loop itself.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ufflow/oats/pkg/models"
)

// OracleClient produces the next raw reply for a rendered prompt.
// Implementations handle transport, retries and timeouts internally;
// a returned error means the oracle is unreachable and the loop cannot
// continue.
type OracleClient interface {
	Complete(ctx context.Context, req *OracleRequest) (string, error)
}

// OracleRequest is a single completion request. System carries the
// standing instructions, User the per-turn prompt.
type OracleRequest struct {
	System string
	User   string
}

// ToolExecutor dispatches a named tool with validated parameters.
// Tool failures are reported inside the result, not as an error; a
// non-nil error is reserved for infrastructure problems.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, params map[string]any) (*models.ToolResult, error)
}

// EventEmitter publishes progress events as the loop advances. Emit must
// be safe for concurrent use; the engine calls it from a single goroutine
// but implementations may be shared with other writers.
type EventEmitter interface {
	Emit(event *models.Event)
}

// PromptBuilder renders the oracle conversation. System returns the
// standing instructions; BuildTurnPrompt renders the per-turn view of the
// goal, state document and recent transcript.
type PromptBuilder interface {
	System() string
	BuildTurnPrompt(input *TurnPromptInput) string
}

// TurnPromptInput is everything the builder needs to render one turn.
type TurnPromptInput struct {
	Goal       string
	Turn       int
	TurnBudget int
	State      *State
	Transcript []TranscriptEntry

	// CorrectiveFeedback is set when the previous reply failed to parse;
	// the builder prepends it so the oracle can repair its output format.
	CorrectiveFeedback string

	// ForceReflection is set when the loop detected no progress; the
	// builder instructs the oracle to reconsider its approach before
	// acting again.
	ForceReflection bool
}

// RunResult is the outcome of a completed loop. Success reports whether
// the investigation ended with an explicit finish action; FailureReason
// carries the semantic reason when it did not. Infrastructure failures
// (oracle exhaustion, cancelled context) surface as errors from Run, not
// here.
type RunResult struct {
	Success       bool
	FinalResult   string
	RootCause     string
	FixApplied    string
	FailureReason string
	TurnsUsed     int
	State         *State
	Transcript    []TranscriptEntry
}

// Summary renders the run outcome as the human-readable block the worker
// prints after the event stream. Log readers skip it because it is not
// valid event JSON.
func (r *RunResult) Summary() string {
	var b strings.Builder
	b.WriteString("=== Investigation summary ===\n")
	if r.State != nil {
		fmt.Fprintf(&b, "Goal:       %s\n", r.State.Goal)
	}
	fmt.Fprintf(&b, "Turns used: %d\n", r.TurnsUsed)
	if r.Success {
		fmt.Fprintf(&b, "Result:     %s\n", r.FinalResult)
		if r.RootCause != "" {
			fmt.Fprintf(&b, "Root cause: %s\n", r.RootCause)
		}
		if r.FixApplied != "" {
			fmt.Fprintf(&b, "Fix:        %s\n", r.FixApplied)
		}
	} else {
		fmt.Fprintf(&b, "Outcome:    no conclusion (%s)\n", r.FailureReason)
	}
	return b.String()
}
