package tools

import "fmt"

// RegisterBuiltins registers the built-in tool set: shell execution, file
// operations, SRE diagnostics, and the finish tool. Built-ins register
// before discovery so a manifest cannot shadow them.
func RegisterBuiltins(r *Registry) error {
	builtins := []*ToolDescriptor{
		executeShellTool(),
		readFileTool(),
		writeFileTool(),
		createFileTool(),
		deleteFileTool(),
		listFilesTool(),
		fileExistsTool(),
		findFunctionTool(),
		checkSystemHealthTool(),
		checkServiceHealthTool(),
		checkRecentChangesTool(),
		analyzeLogsTool(),
		checkDependencyTool(),
		finishTool(),
	}
	for _, desc := range builtins {
		if err := r.Register(desc); err != nil {
			return fmt.Errorf("register builtin: %w", err)
		}
	}
	return nil
}
