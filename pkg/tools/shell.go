package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// runShell executes command via /bin/sh -c and returns combined output.
// Exit failures keep the captured output so the agent sees what the
// command printed before dying; ctx expiry surfaces as the exec error.
func runShell(ctx context.Context, command, workingDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	out, err := cmd.CombinedOutput()
	output := string(out)
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		return output, fmt.Errorf("command failed: %v", err)
	}
	return output, nil
}

// stringParam extracts a string parameter, tolerating absent keys.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func executeShellTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "execute_shell",
		Version:     "2.1.0",
		Description: "Execute a shell command and return its combined stdout/stderr.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Shell command to execute"},
				"working_dir": {"type": "string", "description": "Directory to run the command in"}
			},
			"required": ["command"]
		}`),
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			command := strings.TrimSpace(stringParam(params, "command"))
			if command == "" {
				return "", fmt.Errorf("command must not be empty")
			}
			return runShell(ctx, command, stringParam(params, "working_dir"))
		},
	}
}
