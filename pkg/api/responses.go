package api

import (
	"time"

	"github.com/ufflow/oats/pkg/models"
)

// InvestigateResponse is returned by POST /investigate.
type InvestigateResponse struct {
	InvestigationID string `json:"investigation_id"`
	JobName         string `json:"job_name"`
	LogStreamHint   string `json:"log_stream_hint"`
}

// StatusResponse is returned by GET /investigations/:id.
type StatusResponse struct {
	State      models.InvestigationState `json:"state"`
	CreatedAt  time.Time                 `json:"created_at"`
	TerminalAt *time.Time                `json:"terminal_at"`
}

// InvestigationSummary is one row of GET /investigations.
type InvestigationSummary struct {
	InvestigationID string                    `json:"investigation_id"`
	Goal            string                    `json:"goal"`
	Namespace       string                    `json:"namespace"`
	JobName         string                    `json:"job_name"`
	State           models.InvestigationState `json:"state"`
	Error           string                    `json:"error,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	TerminalAt      *time.Time                `json:"terminal_at"`
}

// ListResponse is returned by GET /investigations.
type ListResponse struct {
	Investigations []InvestigationSummary `json:"investigations"`
	Total          int                    `json:"total"`
}

// LogsResponse is returned by GET /investigations/:id/logs.
type LogsResponse struct {
	InvestigationID string          `json:"investigation_id"`
	Events          []*models.Event `json:"events"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck is one component's health verdict.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
