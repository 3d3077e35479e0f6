package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufflow/oats/pkg/models"
)

// scriptedOracle replays canned replies in order, repeating the last one
// once the script runs out.
type scriptedOracle struct {
	replies []string
	err     error
	calls   int
}

func (o *scriptedOracle) Complete(_ context.Context, _ *OracleRequest) (string, error) {
	o.calls++
	if o.err != nil {
		return "", o.err
	}
	idx := o.calls - 1
	if idx >= len(o.replies) {
		idx = len(o.replies) - 1
	}
	return o.replies[idx], nil
}

// recordingExecutor returns canned results per tool name and records the
// dispatch order.
type recordingExecutor struct {
	results map[string]*models.ToolResult
	calls   []string
}

func (e *recordingExecutor) Execute(_ context.Context, name string, _ map[string]any) (*models.ToolResult, error) {
	e.calls = append(e.calls, name)
	if r, ok := e.results[name]; ok {
		return r, nil
	}
	return &models.ToolResult{Status: models.ToolStatusSuccess, Output: "ok"}, nil
}

type captureEmitter struct {
	events []*models.Event
}

func (c *captureEmitter) Emit(ev *models.Event) { c.events = append(c.events, ev) }

func (c *captureEmitter) types() []models.EventType {
	out := make([]models.EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

// stubPrompts records the inputs the engine rendered each turn.
type stubPrompts struct {
	inputs []TurnPromptInput
}

func (p *stubPrompts) System() string { return "system preamble" }

func (p *stubPrompts) BuildTurnPrompt(in *TurnPromptInput) string {
	p.inputs = append(p.inputs, *in)
	return "turn prompt"
}

func newTestEngine(oracle OracleClient, exec ToolExecutor, cfg Config) (*Engine, *captureEmitter, *stubPrompts) {
	emitter := &captureEmitter{}
	prompts := &stubPrompts{}
	return NewEngine(oracle, exec, emitter, prompts, cfg, nil), emitter, prompts
}

const finishReply = `{"strategize":{"reasoning":"answer directly"},"act":{"tool":"finish","params":{"result":"hello","root_cause":"none"}}}`

const probeReply = `{"strategize":{"reasoning":"poke the system"},"act":{"tool":"probe","params":{}},"state":{"active":{"id":"t1","archetype":"Investigate","phase":"Gather"}}}`

func TestEngine_TrivialFinish(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{finishReply}}
	exec := &recordingExecutor{}
	engine, emitter, _ := newTestEngine(oracle, exec, Config{TurnBudget: 3})

	res, err := engine.Run(context.Background(), "Say hello")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.FinalResult)
	assert.Equal(t, "none", res.RootCause)
	assert.Equal(t, 1, res.TurnsUsed)
	assert.Empty(t, res.FailureReason)

	assert.Equal(t, []models.EventType{
		models.EventTypeThought,
		models.EventTypeAction,
		models.EventTypeFinish,
	}, emitter.types())

	assert.Empty(t, exec.calls, "finish is intercepted before dispatch")
	require.Len(t, res.Transcript, 1)
	assert.Equal(t, models.FinishToolName, res.Transcript[0].Tool)
}

func TestEngine_BudgetExhaustion(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{probeReply}}
	exec := &recordingExecutor{}
	engine, emitter, _ := newTestEngine(oracle, exec, Config{TurnBudget: 2})

	res, err := engine.Run(context.Background(), "never finishes")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, FailureBudgetExhausted, res.FailureReason)
	assert.Equal(t, 2, res.TurnsUsed)
	assert.Len(t, res.Transcript, 2)
	assert.Equal(t, 2, oracle.calls)

	last := emitter.events[len(emitter.events)-1]
	assert.Equal(t, models.EventTypeError, last.Type)
	assert.Equal(t, FailureBudgetExhausted, last.Message)
}

func TestEngine_BudgetOfOne(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{probeReply}}
	exec := &recordingExecutor{}
	engine, _, _ := newTestEngine(oracle, exec, Config{TurnBudget: 1})

	res, err := engine.Run(context.Background(), "one shot")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.TurnsUsed)
	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, []string{"probe"}, exec.calls)
}

func TestEngine_ToolFailureIsRecoverable(t *testing.T) {
	turn1 := `{"strategize":{"reasoning":"try a tool that does not exist"},"act":{"tool":"nonexistent","params":{}}}`
	oracle := &scriptedOracle{replies: []string{turn1, finishReply}}
	exec := &recordingExecutor{results: map[string]*models.ToolResult{
		"nonexistent": {Status: models.ToolStatusFailure, Error: "unknown tool: nonexistent"},
	}}
	engine, emitter, _ := newTestEngine(oracle, exec, Config{TurnBudget: 5})

	res, err := engine.Run(context.Background(), "recover from a bad tool call")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TurnsUsed)

	var observation *models.Event
	for _, ev := range emitter.events {
		if ev.Type == models.EventTypeObservation {
			observation = ev
			break
		}
	}
	require.NotNil(t, observation)
	assert.Equal(t, models.ToolStatusFailure, observation.Status)
	assert.Contains(t, observation.Error, "unknown tool")

	require.Len(t, res.Transcript, 2)
	assert.Contains(t, res.Transcript[0].Observation, "ERROR: unknown tool")
}

func TestEngine_ParseFailureCorrectiveRetry(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"I will now look at the logs.", finishReply}}
	exec := &recordingExecutor{}
	engine, emitter, prompts := newTestEngine(oracle, exec, Config{TurnBudget: 3})

	res, err := engine.Run(context.Background(), "goal")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.TurnsUsed, "a parse failure does not consume a turn")

	require.Len(t, prompts.inputs, 2)
	assert.Empty(t, prompts.inputs[0].CorrectiveFeedback)
	assert.Contains(t, prompts.inputs[1].CorrectiveFeedback, "could not be parsed")
	assert.Equal(t, 1, prompts.inputs[1].Turn, "retry stays on the same turn")

	for _, ev := range emitter.events {
		assert.NotEqual(t, models.EventTypeError, ev.Type)
	}
}

func TestEngine_ConsecutiveParseFailuresFail(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"junk", "more junk"}}
	exec := &recordingExecutor{}
	engine, emitter, _ := newTestEngine(oracle, exec, Config{TurnBudget: 5})

	res, err := engine.Run(context.Background(), "goal")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.FailureReason, "unparseable")
	assert.Equal(t, 0, res.TurnsUsed)
	assert.Equal(t, 2, oracle.calls)

	last := emitter.events[len(emitter.events)-1]
	assert.Equal(t, models.EventTypeError, last.Type)
}

func TestEngine_OracleFailureIsFatal(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("connection refused")}
	exec := &recordingExecutor{}
	engine, emitter, _ := newTestEngine(oracle, exec, Config{TurnBudget: 5})

	res, err := engine.Run(context.Background(), "goal")

	require.Error(t, err)
	assert.Nil(t, res)
	require.NotEmpty(t, emitter.events)
	last := emitter.events[len(emitter.events)-1]
	assert.Equal(t, models.EventTypeError, last.Type)
	assert.Contains(t, last.Message, "oracle unavailable")
}

func TestEngine_MergeWarningsBecomeStatusEvents(t *testing.T) {
	turn1 := `{
		"strategize": {"reasoning": "split the work"},
		"state": {"tasks": [
			{"id": "t1", "description": "a", "status": "active"},
			{"id": "t2", "description": "b", "status": "active"}
		]},
		"act": {"tool": "probe", "params": {}}
	}`
	oracle := &scriptedOracle{replies: []string{turn1, finishReply}}
	exec := &recordingExecutor{}
	engine, emitter, _ := newTestEngine(oracle, exec, Config{TurnBudget: 5})

	res, err := engine.Run(context.Background(), "goal")

	require.NoError(t, err)
	assert.True(t, res.Success)

	var statuses []*models.Event
	for _, ev := range emitter.events {
		if ev.Type == models.EventTypeStatus {
			statuses = append(statuses, ev)
		}
	}
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses[0].Detail, "downgraded")

	require.Len(t, res.State.Tasks, 2)
	assert.Equal(t, TaskStatusBlocked, res.State.Tasks[1].Status)
}

func TestEngine_ForcedReflectionFiresOnce(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{probeReply}}
	exec := &recordingExecutor{}
	engine, _, prompts := newTestEngine(oracle, exec, Config{TurnBudget: 12})

	res, err := engine.Run(context.Background(), "stuck goal")

	require.NoError(t, err)
	assert.False(t, res.Success)

	fired := 0
	for _, in := range prompts.inputs {
		if in.ForceReflection {
			fired++
		}
	}
	assert.Equal(t, 1, fired, "reflection directive is one-shot per stuck window")

	// The stall is detected once the active task has been worked for
	// eight turns with no new facts; the directive rides the next prompt.
	require.Len(t, prompts.inputs, 12)
	assert.True(t, prompts.inputs[8].ForceReflection)
}

func TestEngine_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	oracle := &scriptedOracle{replies: []string{probeReply}}
	exec := &recordingExecutor{}
	engine, _, _ := newTestEngine(oracle, exec, Config{TurnBudget: 5})

	res, err := engine.Run(ctx, "goal")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, oracle.calls)
}

func TestEngine_DefaultsApplied(t *testing.T) {
	engine := NewEngine(&scriptedOracle{}, &recordingExecutor{}, &captureEmitter{}, &stubPrompts{}, Config{}, nil)

	assert.Equal(t, DefaultTurnBudget, engine.cfg.TurnBudget)
	assert.Equal(t, SchemaPrecedenceCurrent, engine.cfg.SchemaPrecedence)
}

func TestRunResult_Summary(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		res := &RunResult{
			Success:     true,
			FinalResult: "pods rescheduled",
			RootCause:   "node memory pressure",
			FixApplied:  "cordoned the node",
			TurnsUsed:   4,
			State:       NewState("api latency spike"),
		}

		s := res.Summary()
		assert.Contains(t, s, "=== Investigation summary ===")
		assert.Contains(t, s, "Goal:       api latency spike")
		assert.Contains(t, s, "Turns used: 4")
		assert.Contains(t, s, "Result:     pods rescheduled")
		assert.Contains(t, s, "Root cause: node memory pressure")
		assert.Contains(t, s, "Fix:        cordoned the node")
	})

	t.Run("no conclusion", func(t *testing.T) {
		res := &RunResult{
			Success:       false,
			FailureReason: FailureBudgetExhausted,
			TurnsUsed:     15,
			State:         NewState("goal"),
		}

		s := res.Summary()
		assert.Contains(t, s, "Outcome:    no conclusion (budget exhausted)")
		assert.NotContains(t, s, "Result:")
	})
}
