package models

// Tool execution status values carried in ToolResult.Status and in
// observation events.
const (
	ToolStatusSuccess = "success"
	ToolStatusFailure = "failure"
)

// ToolResult is the outcome of one tool invocation. Failures are ordinary
// values fed back to the agent as observations, never Go errors: a broken
// tool must not break the loop.
type ToolResult struct {
	Status     string              `json:"status"`
	Output     string              `json:"output,omitempty"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"duration_ms"`
	Summary    *ObservationSummary `json:"summary,omitempty"`
}

// Failed reports whether the invocation ended in failure.
func (r *ToolResult) Failed() bool {
	return r.Status == ToolStatusFailure
}

// ObservationSummary describes an oversized tool output that was spilled
// to disk by the Observation Funnel. Preview holds a head-and-tail excerpt;
// the full payload lives at FullOutputPath. Match statistics are present
// only for search-like tools.
type ObservationSummary struct {
	TotalLines       int    `json:"total_lines"`
	TotalChars       int    `json:"total_chars"`
	TotalMatches     *int   `json:"total_matches,omitempty"`
	FilesWithMatches *int   `json:"files_with_matches,omitempty"`
	FullOutputPath   string `json:"full_output_path"`
	Preview          string `json:"preview"`
}
