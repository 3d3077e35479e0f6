package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufflow/oats/pkg/models"
)

// ────────────────────────────────────────────────────────────
// Reconnect and replay: the job's stdout is the event log, so a client
// that drops mid-investigation and reattaches later gets the complete
// history from the beginning, not just whatever comes after.
// ────────────────────────────────────────────────────────────

func TestE2E_ReattachReplaysFullHistory(t *testing.T) {
	app := NewTestApp(t)

	app.Orchestrator.ScriptNext(JobScript{
		Lines: []string{
			thoughtLine(1, "Inspect the failing cronjob."),
			actionLine(1, "kubectl_describe", map[string]any{"resource": "cronjob/reports"}),
			observationLine(1, models.ToolStatusSuccess, "last schedule missed, forbidden concurrency", ""),
			thoughtLine(2, "Concurrency policy blocks overlapping runs."),
			actionLine(2, models.FinishToolName, map[string]any{"result": "concurrency policy"}),
			finishLine(2, "cronjob blocked by its own previous run", "Forbid concurrencyPolicy with a hung job", ""),
		},
		LineDelay: 30 * time.Millisecond,
	})

	resp := app.StartInvestigation(t, "reports cronjob stopped running")
	id := resp["investigation_id"].(string)

	// First subscriber attaches immediately and drops after the first
	// thought arrives.
	ctx := context.Background()
	ws1, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	require.NoError(t, ws1.Attach(id))
	_, err = ws1.WaitForEventType("thought", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, ws1.Close())

	// The investigation carries on without any subscriber.
	app.WaitForState(t, id, "succeeded")

	// A late subscriber gets the whole story plus the terminal frame.
	ws2, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	defer ws2.Close()
	require.NoError(t, ws2.Attach(id))

	_, err = ws2.WaitForTerminalStatus("succeeded", 10*time.Second)
	require.NoError(t, err)

	AssertEventSequence(t, ws2.Frames(), id,
		"thought", "action", "observation", "thought", "action", "finish")

	finish, err := ws2.WaitForEventType("finish", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Forbid concurrencyPolicy with a hung job", finish.Event["root_cause"])
}

// ────────────────────────────────────────────────────────────
// Attach races and bad attaches.
// ────────────────────────────────────────────────────────────

func TestE2E_AttachUnknownInvestigation(t *testing.T) {
	app := NewTestApp(t)

	ctx := context.Background()
	ws, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.Attach("b1946ac9-2ea5-4bd6-a9d6-0c6b1f0a3f1e"))

	frame, err := ws.WaitForFrameType("error", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "investigation not found", frame.Message)
}

func TestE2E_DoubleAttachIsIdempotent(t *testing.T) {
	app := NewTestApp(t)

	app.Orchestrator.ScriptNext(JobScript{
		Lines: []string{
			thoughtLine(1, "One-turn answer."),
			actionLine(1, models.FinishToolName, map[string]any{"result": "ok"}),
			finishLine(1, "all good", "false alarm", ""),
		},
	})

	resp := app.StartInvestigation(t, "probe the probes")
	id := resp["investigation_id"].(string)
	app.WaitForState(t, id, "succeeded")

	ctx := context.Background()
	ws, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.Attach(id))
	require.NoError(t, ws.Attach(id))

	_, err = ws.WaitForTerminalStatus("succeeded", 10*time.Second)
	require.NoError(t, err)

	// Give a duplicate pump (if one existed) time to double-deliver,
	// then verify the history arrived exactly once.
	time.Sleep(100 * time.Millisecond)
	AssertEventSequence(t, ws.Frames(), id, "thought", "action", "finish")

	// Each attach was acked with the current (terminal) state, and the
	// lone pump delivered exactly one deduplicated terminal frame.
	var terminals int
	for _, f := range ws.EventFrames(id) {
		if evType, _ := f.Event["type"].(string); evType != "status" {
			continue
		}
		if state, _ := f.Event["state"].(string); state == "succeeded" {
			terminals++
		}
	}
	assert.Equal(t, 3, terminals, "want two attach acks plus one terminal frame")
}
