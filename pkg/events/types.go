// Package events provides real-time investigation streaming over
// WebSocket, backed by the worker job's log stream.
//
// ════════════════════════════════════════════════════════════════
// Stream Protocol
// ════════════════════════════════════════════════════════════════
//
// One WebSocket connection can follow any number of investigations.
// The client drives subscriptions with JSON messages; the server
// answers with JSON frames.
//
// Client → server messages (ClientMessage):
//
//	start_investigation  {goal, namespace?, turn_budget?, runbook_url?}
//	attach_investigation {investigation_id}
//	ping                 {}
//
// Server → client frames (ServerFrame):
//
//	connection.established {connection_id}
//	agent_message          {investigation_id, event}
//	pong                   {}
//	error                  {message}
//
// After a successful start or attach, the first agent_message frame
// carries a synthesized status event naming the investigation and its
// worker job. Everything after that is replayed and then tailed from
// the job's stdout: the worker's NDJSON event protocol IS the durable
// event log, so a client that reattaches mid-run (or after completion,
// while the job still exists) receives the full history before the
// live tail. No events are persisted server-side.
//
// Each subscriber receives exactly one terminal status frame per
// investigation, whether it arrives via the lifecycle watcher or via
// the log stream draining after the worker exits.
package events

import "github.com/ufflow/oats/pkg/models"

// Client message types.
const (
	MessageStartInvestigation  = "start_investigation"
	MessageAttachInvestigation = "attach_investigation"
	MessagePing                = "ping"
)

// Server frame types.
const (
	FrameConnectionEstablished = "connection.established"
	FrameAgentMessage          = "agent_message"
	FramePong                  = "pong"
	FrameError                 = "error"
)

// ClientMessage is the JSON structure for client → server WebSocket
// messages. Type selects the variant; unrelated fields are ignored.
type ClientMessage struct {
	Type string `json:"type"`

	// start_investigation
	Goal       string `json:"goal,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
	TurnBudget int    `json:"turn_budget,omitempty"`
	RunbookURL string `json:"runbook_url,omitempty"`

	// attach_investigation
	InvestigationID string `json:"investigation_id,omitempty"`
}

// ServerFrame is the JSON structure for server → client WebSocket
// frames.
type ServerFrame struct {
	Type            string        `json:"type"`
	ConnectionID    string        `json:"connection_id,omitempty"`
	InvestigationID string        `json:"investigation_id,omitempty"`
	Event           *models.Event `json:"event,omitempty"`
	Message         string        `json:"message,omitempty"`
}
