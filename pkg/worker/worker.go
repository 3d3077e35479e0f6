// Package worker hosts one investigation inside an ephemeral job pod. It
// assembles the oracle client, tool registry, executor and reasoning
// engine from the process environment, streams NDJSON events to stdout
// (the job log is the investigation's durable record) and reports the
// outcome through the process exit code: 0 when the agent reached a
// conclusion, 1 for everything else.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ufflow/oats/pkg/agent"
	"github.com/ufflow/oats/pkg/agent/prompt"
	"github.com/ufflow/oats/pkg/config"
	"github.com/ufflow/oats/pkg/executor"
	"github.com/ufflow/oats/pkg/masking"
	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/oracle"
	"github.com/ufflow/oats/pkg/runbook"
	"github.com/ufflow/oats/pkg/tools"
)

// Run resolves the worker configuration, builds the oracle client and
// executes one investigation. Fatal setup problems become error events on
// stdout before the non-zero return, so stream subscribers see why the
// job died without digging through pod state.
func Run(ctx context.Context) int {
	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		NewEmitter(os.Stdout).Emit(models.NewErrorEvent("worker configuration: " + err.Error()))
		return 1
	}

	// Operational logging goes to stderr; stdout belongs to the event
	// protocol and the closing summary.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	provider, key, err := oracle.ResolveProvider(cfg.Provider, cfg.AnthropicKey, cfg.OpenAIKey)
	if err != nil {
		NewEmitter(os.Stdout).Emit(models.NewErrorEvent("oracle: " + err.Error()))
		return 1
	}
	client, err := oracle.New(oracle.Config{
		Provider:    provider,
		Model:       cfg.Model,
		APIKey:      key,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		NewEmitter(os.Stdout).Emit(models.NewErrorEvent("oracle: " + err.Error()))
		return 1
	}

	return execute(ctx, cfg, client, os.Stdout, logger)
}

// execute runs everything downstream of oracle construction. Split from
// Run so tests can substitute a scripted oracle and capture the stream.
func execute(ctx context.Context, cfg *config.WorkerConfig, client agent.OracleClient, out io.Writer, logger *slog.Logger) int {
	emitter := NewEmitter(out)

	scratch, err := os.MkdirTemp("", "oats-scratch-*")
	if err != nil {
		emitter.Emit(models.NewErrorEvent("scratch directory: " + err.Error()))
		return 1
	}
	defer os.RemoveAll(scratch)

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		emitter.Emit(models.NewErrorEvent("builtin tools: " + err.Error()))
		return 1
	}
	discovered, err := registry.Discover(cfg.ToolsDir)
	switch {
	case err == nil:
		logger.Info("Tool registry ready", "builtin", registry.Len()-discovered, "discovered", discovered)
	case cfg.ToolsDir == config.DefaultToolsDir && errors.Is(err, fs.ErrNotExist):
		// No manifest volume mounted; builtins alone serve.
		logger.Info("Tool manifest directory absent, using builtins only", "dir", cfg.ToolsDir)
	default:
		emitter.Emit(models.NewErrorEvent("tool discovery: " + err.Error()))
		return 1
	}

	funnel, err := executor.NewFunnel(scratch, logger)
	if err != nil {
		emitter.Emit(models.NewErrorEvent("observation funnel: " + err.Error()))
		return 1
	}
	exec := executor.New(registry, funnel, masking.NewChain(), 0, logger)

	var runbookText string
	if cfg.RunbookURL != "" {
		runbookText, err = runbook.NewFetcher(cfg.GithubToken).Fetch(ctx, cfg.RunbookURL)
		if err != nil {
			logger.Warn("Runbook fetch failed, continuing without it",
				"url", cfg.RunbookURL, "error", err)
			runbookText = ""
		}
	}

	prompts := prompt.NewBuilder(registry.List(), prompt.Options{
		Version:       cfg.PromptVersion,
		WorkspaceRoot: scratch,
		Runbook:       runbookText,
		Logger:        logger,
	})

	engine := agent.NewEngine(client, exec, emitter, prompts,
		agent.Config{TurnBudget: cfg.TurnBudget}, logger)

	runCtx := ctx
	if cfg.HardDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.HardDeadline)
		defer cancel()
	}

	result, err := engine.Run(runCtx, cfg.Goal)
	if err != nil {
		// Oracle and executor failures already produced an error event
		// inside the loop; a bare context error (hard deadline, SIGTERM)
		// has not.
		if err == context.Canceled || err == context.DeadlineExceeded {
			emitter.Emit(models.NewErrorEvent("investigation aborted: " + err.Error()))
		}
		logger.Error("Investigation aborted", "error", err)
		return 1
	}

	if !result.Success {
		logger.Warn("Investigation ended without a conclusion",
			"reason", result.FailureReason, "turns_used", result.TurnsUsed)
		printSummary(out, result)
		return 1
	}

	path, err := writeFinalResult(cfg.ResultsDir, result, time.Now())
	if err != nil {
		emitter.Emit(models.NewErrorEvent("final result artifact: " + err.Error()))
		return 1
	}
	logger.Info("Investigation finished",
		"turns_used", result.TurnsUsed, "artifact", path)
	printSummary(out, result)
	return 0
}

// writeFinalResult persists the conclusion as a plain-text artifact named
// final_result_<YYYYMMDD_HHMMSS>.txt under dir, creating dir if needed.
func writeFinalResult(dir string, result *agent.RunResult, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintln(&b, result.FinalResult)
	if result.RootCause != "" {
		fmt.Fprintf(&b, "\nRoot cause: %s\n", result.RootCause)
	}
	if result.FixApplied != "" {
		fmt.Fprintf(&b, "\nFix applied: %s\n", result.FixApplied)
	}
	fmt.Fprintf(&b, "\nTurns used: %d\n", result.TurnsUsed)

	path := filepath.Join(dir, fmt.Sprintf("final_result_%s.txt", now.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write final result: %w", err)
	}
	return path, nil
}

// printSummary writes the closing human-readable block after the last
// event, separated by a blank line.
func printSummary(w io.Writer, result *agent.RunResult) {
	fmt.Fprintln(w)
	fmt.Fprint(w, result.Summary())
}
