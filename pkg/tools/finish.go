package tools

import (
	"context"
	"encoding/json"

	"github.com/ufflow/oats/pkg/models"
)

// FinishToolName is the distinguished tool whose invocation marks the
// investigation successful. The engine intercepts it before dispatch; the
// handler below only runs if something calls the executor directly.
const FinishToolName = models.FinishToolName

func finishTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        FinishToolName,
		Version:     "1.0.0",
		Description: "Conclude the investigation with a final result and optional root cause.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"result": {"type": "string", "description": "Final answer for the goal"},
				"root_cause": {"type": "string", "description": "Identified root cause, if any"},
				"fix_applied": {"type": "string", "description": "Remediation performed, if any"}
			},
			"required": ["result"]
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			return stringParam(params, "result"), nil
		},
	}
}
