// Package models contains the business domain types shared across the
// control plane and the worker: investigation lifecycle, streamed events,
// and tool execution results.
package models

import (
	"strings"
	"time"
)

// InvestigationState is the lifecycle state of an investigation.
type InvestigationState string

const (
	StatePending   InvestigationState = "pending"
	StateRunning   InvestigationState = "running"
	StateSucceeded InvestigationState = "succeeded"
	StateFailed    InvestigationState = "failed"
	StateCancelled InvestigationState = "cancelled"
	StateTimedOut  InvestigationState = "timed_out"
)

// IsTerminal reports whether the state is final. Terminal states are
// immutable: no transition ever leaves them.
func (s InvestigationState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// Investigation is the control plane's record of one submitted goal and
// the ephemeral worker job materialized for it.
type Investigation struct {
	ID         string             `json:"investigation_id"`
	Goal       string             `json:"goal"`
	Namespace  string             `json:"namespace"`
	TurnBudget int                `json:"turn_budget"`
	RunbookURL string             `json:"runbook_url,omitempty"`
	JobName    string             `json:"job_name"`
	State      InvestigationState `json:"state"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	TerminalAt *time.Time         `json:"terminal_at"`
}

const jobNamePrefix = "investigation-"

// ShortID returns the first 8 hex characters of a UUID-shaped id,
// dashes stripped.
func ShortID(id string) string {
	s := strings.ReplaceAll(id, "-", "")
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// JobNameForID derives the orchestrator job name from an investigation id.
func JobNameForID(id string) string {
	return jobNamePrefix + ShortID(id)
}
