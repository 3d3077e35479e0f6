package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufflow/oats/pkg/models"
)

// ────────────────────────────────────────────────────────────
// HTTP Client Helpers
// ────────────────────────────────────────────────────────────

// StartInvestigation posts a goal and returns the parsed response.
func (app *TestApp) StartInvestigation(t *testing.T, goal string) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, "/investigate", map[string]interface{}{"goal": goal}, http.StatusOK)
}

// StartInvestigationWith posts an arbitrary body and expects a status.
func (app *TestApp) StartInvestigationWith(t *testing.T, body map[string]interface{}, expectedStatus int) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, "/investigate", body, expectedStatus)
}

// GetStatus retrieves one investigation's state record.
func (app *TestApp) GetStatus(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	return app.getJSON(t, "/investigations/"+id, http.StatusOK)
}

// ListInvestigations calls GET /investigations with optional query params.
func (app *TestApp) ListInvestigations(t *testing.T, queryParams string) map[string]interface{} {
	t.Helper()
	path := "/investigations"
	if queryParams != "" {
		path += "?" + queryParams
	}
	return app.getJSON(t, path, http.StatusOK)
}

// CancelInvestigation sends DELETE /investigations/:id and expects 204.
func (app *TestApp) CancelInvestigation(t *testing.T, id string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete,
		app.BaseURL+"/investigations/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNoContent, resp.StatusCode, "DELETE /investigations/%s: unexpected status", id)
}

// GetEventLog replays the retained event stream as parsed JSON objects.
func (app *TestApp) GetEventLog(t *testing.T, id string) []map[string]interface{} {
	t.Helper()
	body := app.getJSON(t, "/investigations/"+id+"/logs", http.StatusOK)
	raw, ok := body["events"].([]interface{})
	require.True(t, ok, "logs response carries no events array: %v", body)
	events := make([]map[string]interface{}, 0, len(raw))
	for _, e := range raw {
		ev, ok := e.(map[string]interface{})
		require.True(t, ok)
		events = append(events, ev)
	}
	return events
}

// GetHealth calls GET /healthz without failing on a 503, returning the
// HTTP status alongside the parsed body.
func (app *TestApp) GetHealth(t *testing.T) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(app.BaseURL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// GetMetrics scrapes GET /metrics and returns the exposition text.
func (app *TestApp) GetMetrics(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(app.BaseURL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (app *TestApp) postJSON(t *testing.T, path string, body interface{}, expectedStatus int) map[string]interface{} {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, app.BaseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "POST %s: unexpected status", path)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, app.BaseURL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, expectedStatus, resp.StatusCode, "GET %s: unexpected status", path)
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

// ────────────────────────────────────────────────────────────
// Polling Helpers
// ────────────────────────────────────────────────────────────

// WaitForState polls the status endpoint until the investigation reaches
// one of the expected states. Returns the state it landed on.
func (app *TestApp) WaitForState(t *testing.T, id string, expected ...string) string {
	t.Helper()
	var actual string
	require.Eventually(t, func() bool {
		status := app.GetStatus(t, id)
		actual, _ = status["state"].(string)
		for _, exp := range expected {
			if actual == exp {
				return true
			}
		}
		return false
	}, 10*time.Second, 20*time.Millisecond,
		"investigation %s did not reach state %v (last: %s)", id, expected, actual)
	return actual
}

// ────────────────────────────────────────────────────────────
// Worker Script Line Builders
// ────────────────────────────────────────────────────────────

func eventLine(ev *models.Event) string {
	data, err := json.Marshal(ev)
	if err != nil {
		panic(err) // models.Event always marshals
	}
	return string(data)
}

func thoughtLine(turn int, thought string) string {
	return eventLine(models.NewThoughtEvent(turn, thought))
}

func actionLine(turn int, tool string, params map[string]any) string {
	return eventLine(models.NewActionEvent(turn, tool, params))
}

func observationLine(turn int, status, output, errMsg string) string {
	return eventLine(models.NewObservationEvent(turn, &models.ToolResult{
		Status:     status,
		Output:     output,
		Error:      errMsg,
		DurationMS: 12,
	}))
}

func funneledObservationLine(turn int, preview, artifactPath string, totalLines, totalChars int) string {
	return eventLine(models.NewObservationEvent(turn, &models.ToolResult{
		Status:     models.ToolStatusSuccess,
		Output:     preview,
		DurationMS: 80,
		Summary: &models.ObservationSummary{
			TotalLines:     totalLines,
			TotalChars:     totalChars,
			FullOutputPath: artifactPath,
			Preview:        preview,
		},
	}))
}

func errorLine(message string) string {
	return eventLine(models.NewErrorEvent(message))
}

func finishLine(turn int, result, rootCause, fixApplied string) string {
	return eventLine(models.NewFinishEvent(turn, result, rootCause, fixApplied))
}

// ────────────────────────────────────────────────────────────
// WebSocket Structural Assertions
// ────────────────────────────────────────────────────────────

// AssertEventSequence verifies the types of the streamed events for one
// investigation, in order, ignoring infra frames and status events.
func AssertEventSequence(t *testing.T, frames []WSFrame, investigationID string, wantTypes ...string) {
	t.Helper()
	var got []string
	for _, f := range frames {
		if f.Type != "agent_message" || f.InvestigationID != investigationID {
			continue
		}
		evType, _ := f.Event["type"].(string)
		if evType == "status" {
			continue
		}
		got = append(got, evType)
	}
	assert.Equal(t, wantTypes, got, "streamed event sequence mismatch")
}
