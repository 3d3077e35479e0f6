// Package executor dispatches validated tool calls for the reasoning
// engine and applies the Observation Funnel to oversized outputs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ufflow/oats/pkg/agent"
	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/tools"
)

// Compile-time check that Executor implements agent.ToolExecutor.
var _ agent.ToolExecutor = (*Executor)(nil)

// DefaultToolTimeout bounds a single handler invocation.
const DefaultToolTimeout = 300 * time.Second

// Sanitizer scrubs tool output before it is recorded anywhere. The
// masking chain implements it.
type Sanitizer interface {
	Apply(string) string
}

// Executor resolves tool calls against a registry, runs handlers under a
// per-call timeout, sanitizes what they print, and funnels large outputs
// before they reach the transcript.
type Executor struct {
	registry  *tools.Registry
	funnel    *Funnel
	sanitizer Sanitizer
	timeout   time.Duration
	logger    *slog.Logger
}

// New wires an executor. A nil sanitizer disables masking; a zero
// timeout selects DefaultToolTimeout.
func New(registry *tools.Registry, funnel *Funnel, sanitizer Sanitizer, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:  registry,
		funnel:    funnel,
		sanitizer: sanitizer,
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute runs one tool call.
//
// Flow:
//  1. Look the tool up; a miss returns a failure result naming the
//     available tools.
//  2. Validate params against the descriptor's schema; violations are
//     reported to the agent, never fatal.
//  3. Invoke the handler under the per-call timeout.
//  4. Sanitize the output; credentials must not reach the transcript,
//     the event stream, or the spill file.
//  5. Apply the Observation Funnel when the output exceeds thresholds.
//  6. Record duration_ms.
//
// Tool-level failures come back inside the ToolResult (error as content);
// the returned error is always nil so the loop keeps running.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) (*models.ToolResult, error) {
	start := time.Now()

	desc, err := e.registry.Lookup(name)
	if err != nil {
		return e.failure(start, fmt.Sprintf("unknown tool: %s. Available tools: %s",
			name, e.availableTools()), ""), nil
	}

	if err := desc.ValidateParams(params); err != nil {
		return e.failure(start, err.Error(), ""), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Info("executing tool", "tool", name, "params", params)
	output, err := desc.Handler(callCtx, params)
	output = e.sanitize(output)
	if err != nil {
		msg := e.sanitize(err.Error())
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("tool %s timed out after %s", name, e.timeout)
		}
		// Partial output often carries the reason for the failure, so it
		// survives alongside the error.
		return e.failure(start, msg, output), nil
	}

	res := &models.ToolResult{
		Status:     models.ToolStatusSuccess,
		Output:     output,
		DurationMS: time.Since(start).Milliseconds(),
	}

	funneled, summary, ferr := e.funnel.Apply(name, desc.SearchTool, output)
	if ferr != nil {
		e.logger.Error("observation funnel failed", "tool", name, "error", ferr)
		return e.failure(start, fmt.Sprintf("observation funnel: %s", ferr), ""), nil
	}
	if summary != nil {
		res.Output = funneled
		res.Summary = summary
		e.logger.Info("tool output funneled",
			"tool", name,
			"total_lines", summary.TotalLines,
			"total_chars", summary.TotalChars,
			"spill_path", summary.FullOutputPath)
	}

	return res, nil
}

func (e *Executor) sanitize(s string) string {
	if e.sanitizer == nil || s == "" {
		return s
	}
	return e.sanitizer.Apply(s)
}

func (e *Executor) failure(start time.Time, message, output string) *models.ToolResult {
	return &models.ToolResult{
		Status:     models.ToolStatusFailure,
		Error:      message,
		Output:     output,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// availableTools renders the registry inventory for unknown-tool errors.
func (e *Executor) availableTools() string {
	descriptors := e.registry.List()
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, fmt.Sprintf("%s:%s", d.Name, d.Version))
	}
	return strings.Join(names, ", ")
}
