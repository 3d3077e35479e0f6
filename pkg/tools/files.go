package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

func readFileTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "read_file",
		Version:     "1.0.0",
		Description: "Read a file and return its contents.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path of the file to read"}
			},
			"required": ["path"]
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			data, err := os.ReadFile(stringParam(params, "path"))
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

func writeFileTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "write_file",
		Version:     "1.0.0",
		Description: "Write content to a file, replacing it if it exists.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"}
			},
			"required": ["path", "content"]
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			path := stringParam(params, "path")
			content := stringParam(params, "content")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
		},
	}
}

func createFileTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "create_file",
		Version:     "1.0.0",
		Description: "Create a new file with optional content. Fails if the file already exists.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"}
			},
			"required": ["path"]
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			path := stringParam(params, "path")
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err != nil {
				return "", err
			}
			defer f.Close()
			content := stringParam(params, "content")
			if _, err := f.WriteString(content); err != nil {
				return "", err
			}
			return fmt.Sprintf("created %s (%d bytes)", path, len(content)), nil
		},
	}
}

func deleteFileTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "delete_file",
		Version:     "1.0.0",
		Description: "Delete a file.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"}
			},
			"required": ["path"]
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			path := stringParam(params, "path")
			if err := os.Remove(path); err != nil {
				return "", err
			}
			return "deleted " + path, nil
		},
	}
}

func listFilesTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "list_files",
		Version:     "1.0.0",
		Description: "List directory entries. Directories are suffixed with /.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Directory to list, defaults to ."}
			}
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			path := stringParam(params, "path")
			if path == "" {
				path = "."
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	}
}

func fileExistsTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "file_exists",
		Version:     "1.0.0",
		Description: "Check whether a path exists. Returns true or false.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"}
			},
			"required": ["path"]
		}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			_, err := os.Stat(stringParam(params, "path"))
			if err != nil {
				if os.IsNotExist(err) {
					return "false", nil
				}
				return "", err
			}
			return "true", nil
		},
	}
}

func findFunctionTool() *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "find_function",
		Version:     "1.0.0",
		Description: "Search source files for a function definition by name.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Function name to locate"},
				"path": {"type": "string", "description": "Directory to search, defaults to ."}
			},
			"required": ["name"]
		}`),
		SearchTool: true,
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			name := stringParam(params, "name")
			path := stringParam(params, "path")
			if path == "" {
				path = "."
			}
			cmd := fmt.Sprintf("grep -rnE '(func|def|function)[[:space:]]+%s[[:space:](]' %q 2>/dev/null", name, path)
			out, err := runShell(ctx, cmd, "")
			if err != nil && strings.TrimSpace(out) == "" {
				// grep exits 1 on no matches; that is an answer, not a failure.
				return "no definitions found for " + name, nil
			}
			return out, nil
		},
	}
}
