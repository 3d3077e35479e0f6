package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ufflow/oats/pkg/models"
)

// DefaultTurnBudget is the number of turns a run gets when the caller
// does not set one.
const DefaultTurnBudget = 15

// FailureBudgetExhausted is the FailureReason reported when the loop
// spends every turn without a finish action.
const FailureBudgetExhausted = "budget exhausted"

// Config tunes one engine instance.
type Config struct {
	// TurnBudget bounds the number of completed turns. Zero or negative
	// means DefaultTurnBudget.
	TurnBudget int

	// SchemaPrecedence picks between the act and action sections when an
	// oracle reply carries both. Empty means SchemaPrecedenceCurrent.
	SchemaPrecedence string
}

// Engine drives the Reflect-Strategize-Act loop for one investigation.
// It is single-use: construct, Run once, discard.
type Engine struct {
	oracle   OracleClient
	executor ToolExecutor
	emitter  EventEmitter
	prompts  PromptBuilder
	cfg      Config
	logger   *slog.Logger
}

// NewEngine wires a loop from its collaborators. All four are required.
func NewEngine(oracle OracleClient, executor ToolExecutor, emitter EventEmitter, prompts PromptBuilder, cfg Config, logger *slog.Logger) *Engine {
	if cfg.TurnBudget <= 0 {
		cfg.TurnBudget = DefaultTurnBudget
	}
	if cfg.SchemaPrecedence == "" {
		cfg.SchemaPrecedence = SchemaPrecedenceCurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		oracle:   oracle,
		executor: executor,
		emitter:  emitter,
		prompts:  prompts,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the loop until the agent finishes, the budget runs out,
// the reply format breaks down, or the context is cancelled. Semantic
// failures (budget, unparseable replies) come back inside RunResult with
// Success=false; the returned error is reserved for infrastructure
// failures that prevent the loop from continuing at all.
func (e *Engine) Run(ctx context.Context, goal string) (*RunResult, error) {
	state := NewState(goal)
	iter := NewIterationState(e.cfg.TurnBudget)
	var transcript []TranscriptEntry

	corrective := ""
	forceReflection := false

	e.logger.Info("starting investigation loop", "goal", goal, "turn_budget", e.cfg.TurnBudget)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if iter.BudgetExhausted() {
			e.logger.Warn("turn budget exhausted", "turns_used", iter.Turn)
			e.emitter.Emit(models.NewErrorEvent(FailureBudgetExhausted))
			return e.result(false, "", nil, state, transcript, iter, FailureBudgetExhausted), nil
		}
		turn := iter.Turn + 1

		prompt := e.prompts.BuildTurnPrompt(&TurnPromptInput{
			Goal:               goal,
			Turn:               turn,
			TurnBudget:         e.cfg.TurnBudget,
			State:              state,
			Transcript:         transcript,
			CorrectiveFeedback: corrective,
			ForceReflection:    forceReflection,
		})

		raw, err := e.oracle.Complete(ctx, &OracleRequest{System: e.prompts.System(), User: prompt})
		if err != nil {
			msg := fmt.Sprintf("oracle unavailable: %v", err)
			e.emitter.Emit(models.NewErrorEvent(msg))
			return nil, fmt.Errorf("oracle call failed on turn %d: %w", turn, err)
		}

		outcome := ParseReply(raw, e.cfg.SchemaPrecedence)
		if outcome.Malformed {
			iter.RecordParseFailure(outcome.ErrorMessage)
			e.logger.Warn("oracle reply failed to parse",
				"turn", turn,
				"consecutive_failures", iter.ConsecutiveParseFailures,
				"error", outcome.ErrorMessage)
			if iter.ShouldAbortOnParseFailures() {
				msg := fmt.Sprintf("oracle reply unparseable %d times in a row: %s",
					iter.ConsecutiveParseFailures, outcome.ErrorMessage)
				e.emitter.Emit(models.NewErrorEvent(msg))
				return e.result(false, "", nil, state, transcript, iter, msg), nil
			}
			corrective = correctiveInstruction(outcome.ErrorMessage)
			continue
		}
		iter.RecordParseSuccess()
		corrective = ""
		forceReflection = false

		reply := outcome.Reply
		e.emitter.Emit(models.NewThoughtEvent(turn, reply.Thought()))
		e.emitter.Emit(models.NewActionEvent(turn, reply.Act.Tool, reply.Act.Params))

		if reply.Act.Tool == models.FinishToolName {
			final := stringField(reply.Act.Params, "result")
			transcript = append(transcript, TranscriptEntry{
				Turn:        turn,
				Thought:     reply.Thought(),
				Tool:        reply.Act.Tool,
				Params:      reply.Act.Params,
				Observation: "investigation concluded",
			})
			iter.Turn = turn
			e.emitter.Emit(models.NewFinishEvent(turn, final,
				stringField(reply.Act.Params, "root_cause"),
				stringField(reply.Act.Params, "fix_applied")))
			e.logger.Info("investigation finished", "turns_used", turn)
			return e.result(true, final, reply.Act, state, transcript, iter, ""), nil
		}

		result, err := e.executor.Execute(ctx, reply.Act.Tool, reply.Act.Params)
		if err != nil {
			msg := fmt.Sprintf("tool execution failed fatally: %v", err)
			e.emitter.Emit(models.NewErrorEvent(msg))
			return nil, fmt.Errorf("executing %s on turn %d: %w", reply.Act.Tool, turn, err)
		}
		e.emitter.Emit(models.NewObservationEvent(turn, result))

		transcript = append(transcript, TranscriptEntry{
			Turn:        turn,
			Thought:     reply.Thought(),
			Tool:        reply.Act.Tool,
			Params:      reply.Act.Params,
			Observation: observationText(result),
		})

		for _, warning := range state.Merge(reply.State, turn) {
			e.logger.Warn("state merge correction", "turn", turn, "warning", warning)
			e.emitter.Emit(models.NewStatusEvent(models.StateRunning, warning))
		}
		state.TickActive()
		iter.Turn = turn

		turnsOnTask := 0
		if state.Active != nil {
			turnsOnTask = state.Active.TurnsOnTask
		}
		if iter.ObserveProgress(len(state.Facts), len(state.RuledOut), turnsOnTask) {
			e.logger.Warn("no progress detected, forcing reflection",
				"turn", turn, "turns_on_task", turnsOnTask)
			forceReflection = true
		}
	}
}

// result assembles the RunResult snapshot returned to the worker.
func (e *Engine) result(success bool, final string, act *ActSection, state *State, transcript []TranscriptEntry, iter *IterationState, failure string) *RunResult {
	res := &RunResult{
		Success:       success,
		FinalResult:   final,
		FailureReason: failure,
		TurnsUsed:     iter.Turn,
		State:         state,
		Transcript:    transcript,
	}
	if act != nil {
		res.RootCause = stringField(act.Params, "root_cause")
		res.FixApplied = stringField(act.Params, "fix_applied")
	}
	return res
}

// observationText renders a tool result for the transcript. Failed calls
// keep any captured output after the error line so the agent can see
// partial results.
func observationText(res *models.ToolResult) string {
	if !res.Failed() {
		return res.Output
	}
	if res.Output == "" {
		return "ERROR: " + res.Error
	}
	return "ERROR: " + res.Error + "\n" + res.Output
}

// correctiveInstruction is the feedback prepended to the retry prompt
// after a malformed reply.
func correctiveInstruction(parseError string) string {
	var b strings.Builder
	b.WriteString("Your previous reply could not be parsed: ")
	b.WriteString(parseError)
	b.WriteString(". Respond with a single JSON object containing the ")
	b.WriteString(`"reflect", "strategize", "state" and "act" sections, `)
	b.WriteString("with no prose outside the JSON.")
	return b.String()
}

func stringField(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
