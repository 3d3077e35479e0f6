package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func checkSystemHealthTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "check_system_health",
		Version:     "1.0.0",
		Description: "Report load, memory, and filesystem usage for this host.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			return runShell(ctx, "uptime; echo; free -m 2>/dev/null; echo; df -h", "")
		},
	}
}

func checkServiceHealthTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "check_service_health",
		Version:     "1.0.0",
		Description: "Check whether a named service or process is running.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"service": {"type": "string", "description": "Service or process name"}
			},
			"required": ["service"]
		}`),
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			service := stringParam(params, "service")
			cmd := fmt.Sprintf("systemctl is-active %q 2>/dev/null || pgrep -fl %q", service, service)
			out, err := runShell(ctx, cmd, "")
			if err != nil && strings.TrimSpace(out) == "" {
				return fmt.Sprintf("service %s: not running (no unit, no matching process)", service), nil
			}
			return out, nil
		},
	}
}

func checkRecentChangesTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "check_recent_changes",
		Version:     "1.0.0",
		Description: "List files modified within the last N minutes under a path.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Directory to inspect, defaults to ."},
				"minutes": {"type": "integer", "description": "Lookback window, defaults to 60"}
			}
		}`),
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			path := stringParam(params, "path")
			if path == "" {
				path = "."
			}
			minutes := 60
			if v, ok := params["minutes"].(float64); ok && v > 0 {
				minutes = int(v)
			}
			cmd := fmt.Sprintf("find %q -mmin -%d -type f 2>/dev/null | head -200", path, minutes)
			return runShell(ctx, cmd, "")
		},
	}
}

func analyzeLogsTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "analyze_logs",
		Version:     "1.0.0",
		Description: "Scan a log file for lines matching a pattern (default ERROR|WARN|FATAL).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Log file to scan"},
				"pattern": {"type": "string", "description": "Extended regex, defaults to ERROR|WARN|FATAL"}
			},
			"required": ["path"]
		}`),
		SearchTool: true,
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			path := stringParam(params, "path")
			pattern := stringParam(params, "pattern")
			if pattern == "" {
				pattern = "ERROR|WARN|FATAL"
			}
			cmd := fmt.Sprintf("grep -nE %q %q 2>/dev/null | tail -500", pattern, path)
			out, err := runShell(ctx, cmd, "")
			if err != nil && strings.TrimSpace(out) == "" {
				return fmt.Sprintf("no lines matching %q in %s", pattern, path), nil
			}
			return out, nil
		},
	}
}

func checkDependencyTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "check_dependency",
		Version:     "1.0.0",
		Description: "Check whether a binary is installed and report its version.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Binary name, e.g. curl"}
			},
			"required": ["name"]
		}`),
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			name := stringParam(params, "name")
			cmd := fmt.Sprintf("command -v %q && (%q --version 2>&1 | head -3) || echo 'not installed'", name, name)
			return runShell(ctx, cmd, "")
		},
	}
}
