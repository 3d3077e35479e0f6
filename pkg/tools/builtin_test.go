package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinHandler(t *testing.T, name string) ToolHandler {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	desc, err := r.Lookup(name)
	require.NoError(t, err)
	return desc.Handler
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestExecuteShell(t *testing.T) {
	h := builtinHandler(t, "execute_shell")

	out, err := h(testCtx(t), map[string]any{"command": "echo hello world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)

	// Failing commands keep their output and report the failure.
	out, err = h(testCtx(t), map[string]any{"command": "echo partial; exit 3"})
	require.Error(t, err)
	assert.Contains(t, out, "partial")
}

func TestFileToolsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	ctx := testCtx(t)

	create := builtinHandler(t, "create_file")
	out, err := create(ctx, map[string]any{"path": path, "content": "first"})
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	// create_file refuses to clobber.
	_, err = create(ctx, map[string]any{"path": path})
	assert.Error(t, err)

	read := builtinHandler(t, "read_file")
	out, err = read(ctx, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	write := builtinHandler(t, "write_file")
	_, err = write(ctx, map[string]any{"path": path, "content": "second"})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	exists := builtinHandler(t, "file_exists")
	out, err = exists(ctx, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	list := builtinHandler(t, "list_files")
	out, err = list(ctx, map[string]any{"path": dir})
	require.NoError(t, err)
	assert.Contains(t, out, "note.txt")

	del := builtinHandler(t, "delete_file")
	_, err = del(ctx, map[string]any{"path": path})
	require.NoError(t, err)
	out, err = exists(ctx, map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "false", out)
}

func TestFindFunctionReportsMatches(t *testing.T) {
	dir := t.TempDir()
	src := "package demo\n\nfunc TargetFunc() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.go"), []byte(src), 0o644))

	h := builtinHandler(t, "find_function")
	out, err := h(testCtx(t), map[string]any{"name": "TargetFunc", "path": dir})
	require.NoError(t, err)
	assert.Contains(t, out, "demo.go")

	out, err = h(testCtx(t), map[string]any{"name": "NoSuchFunc", "path": dir})
	require.NoError(t, err)
	assert.Contains(t, out, "no definitions found")
}
