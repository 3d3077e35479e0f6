package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────────────────
// Cancellation: an operator kills a running investigation. The worker
// job is deleted from the cluster, the record is cancelled, subscribers
// get a terminal frame, and a second cancel is a quiet no-op.
// ────────────────────────────────────────────────────────────

func TestE2E_Cancellation(t *testing.T) {
	app := NewTestApp(t)

	// The scripted worker emits two events and then runs forever.
	app.Orchestrator.ScriptNext(JobScript{
		Lines: []string{
			thoughtLine(1, "Watching the rollout; this may take a while."),
			actionLine(1, "watch_rollout", map[string]any{"deployment": "api"}),
		},
		LineDelay: 5 * time.Millisecond,
		Hold:      true,
	})

	resp := app.StartInvestigation(t, "rollout of api seems stuck")
	id := resp["investigation_id"].(string)
	jobName := resp["job_name"].(string)

	ctx := context.Background()
	ws, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.Attach(id))

	// Wait until live events are flowing, so the cancel hits a
	// genuinely running investigation.
	_, err = ws.WaitForEventType("action", 5*time.Second)
	require.NoError(t, err)

	app.CancelInvestigation(t, id)

	// Subscribers learn the outcome even though the worker never said
	// goodbye.
	terminal, err := ws.WaitForTerminalStatus("cancelled", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "cancelled by operator", terminal.Event["detail"])

	// The worker job is gone from the cluster.
	deleted := app.Orchestrator.DeletedJobs()
	require.Len(t, deleted, 1)
	assert.Equal(t, app.Config.Orchestrator.Namespace+"/"+jobName, deleted[0])

	assert.Equal(t, "cancelled", app.GetStatus(t, id)["state"])

	// Cancelling again is idempotent: the caller wanted it stopped and
	// it is stopped.
	app.CancelInvestigation(t, id)
	assert.Equal(t, "cancelled", app.GetStatus(t, id)["state"])

	// With the job deleted there is nothing left to replay; the event
	// log answers empty instead of erroring.
	events := app.GetEventLog(t, id)
	assert.Empty(t, events)
}
