package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// EventType discriminates the streamed event union.
type EventType string

const (
	EventTypeThought     EventType = "thought"
	EventTypeAction      EventType = "action"
	EventTypeObservation EventType = "observation"
	EventTypeStatus      EventType = "status"
	EventTypeError       EventType = "error"
	EventTypeFinish      EventType = "finish"
)

// FinishToolName is the distinguished tool that concludes an
// investigation. The reasoning engine intercepts it before dispatch and
// turns it into a finish event.
const FinishToolName = "finish"

// Event is the unit streamed from a worker to the control plane: one JSON
// object per stdout line. Type selects the variant; only the fields that
// belong to the variant are populated, everything else stays zero and is
// omitted on the wire.
type Event struct {
	Type      EventType `json:"type"`
	Turn      int       `json:"turn,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// thought
	Thought string `json:"thought,omitempty"`

	// action
	Tool   string         `json:"tool,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// observation
	Status     string              `json:"status,omitempty"`
	Output     string              `json:"output,omitempty"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"duration_ms,omitempty"`
	Summary    *ObservationSummary `json:"summary,omitempty"`

	// status (lifecycle notices, synthesized by worker or control plane)
	State           InvestigationState `json:"state,omitempty"`
	Detail          string             `json:"detail,omitempty"`
	InvestigationID string             `json:"investigation_id,omitempty"`
	JobName         string             `json:"job_name,omitempty"`

	// error
	Message string `json:"message,omitempty"`

	// finish
	Result     string `json:"result,omitempty"`
	RootCause  string `json:"root_cause,omitempty"`
	FixApplied string `json:"fix_applied,omitempty"`
}

// NewThoughtEvent records the agent's reasoning for one turn.
func NewThoughtEvent(turn int, thought string) *Event {
	return &Event{Type: EventTypeThought, Turn: turn, Timestamp: time.Now().UTC(), Thought: thought}
}

// NewActionEvent records the tool the agent chose and its parameters.
func NewActionEvent(turn int, tool string, params map[string]any) *Event {
	return &Event{Type: EventTypeAction, Turn: turn, Timestamp: time.Now().UTC(), Tool: tool, Params: params}
}

// NewObservationEvent records the outcome of a dispatched tool call.
func NewObservationEvent(turn int, res *ToolResult) *Event {
	return &Event{
		Type:       EventTypeObservation,
		Turn:       turn,
		Timestamp:  time.Now().UTC(),
		Status:     res.Status,
		Output:     res.Output,
		Error:      res.Error,
		DurationMS: res.DurationMS,
		Summary:    res.Summary,
	}
}

// NewStatusEvent records a lifecycle notice.
func NewStatusEvent(state InvestigationState, detail string) *Event {
	return &Event{Type: EventTypeStatus, Timestamp: time.Now().UTC(), State: state, Detail: detail}
}

// NewErrorEvent records a terminal-grade failure visible to the client.
func NewErrorEvent(message string) *Event {
	return &Event{Type: EventTypeError, Timestamp: time.Now().UTC(), Message: message}
}

// NewFinishEvent records successful completion via the finish tool.
func NewFinishEvent(turn int, result, rootCause, fixApplied string) *Event {
	return &Event{
		Type:       EventTypeFinish,
		Turn:       turn,
		Timestamp:  time.Now().UTC(),
		Result:     result,
		RootCause:  rootCause,
		FixApplied: fixApplied,
	}
}

// knownEventTypes is the closed set of event types the platform speaks.
var knownEventTypes = map[EventType]struct{}{
	EventTypeThought:     {},
	EventTypeAction:      {},
	EventTypeObservation: {},
	EventTypeStatus:      {},
	EventTypeError:       {},
	EventTypeFinish:      {},
}

// ParseEventLine decodes one line of worker stdout. Workers interleave
// plain log lines with the NDJSON event protocol; anything that is not a
// JSON object carrying a recognized type field is not an event and is
// reported as ok=false.
func ParseEventLine(line []byte) (*Event, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, false
	}
	if _, known := knownEventTypes[ev.Type]; !known {
		return nil, false
	}
	return &ev, true
}
