package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Worker environment variable names. The control plane injects the OATS_
// family through the job spec; the UFFLOW_ family tunes the oracle and in
// practice arrives via the oracle credentials secret or the pod template.
const (
	EnvGoal          = "OATS_GOAL"
	EnvMaxTurns      = "OATS_MAX_TURNS"
	EnvResultsDir    = "OATS_RESULTS_DIR"
	EnvToolsDir      = "OATS_TOOLS_DIR"
	EnvHardDeadline  = "OATS_HARD_DEADLINE"
	EnvRunbookURL    = "OATS_RUNBOOK_URL"
	EnvGithubToken   = "GITHUB_TOKEN"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvLLMProvider   = "UFFLOW_LLM_PROVIDER"
	EnvLLMModel      = "UFFLOW_LLM_MODEL"
	EnvTemperature   = "UFFLOW_TEMPERATURE"
	EnvMaxTokens     = "UFFLOW_MAX_TOKENS"
	EnvPromptVersion = "UFFLOW_PROMPT_VERSION"
	EnvLogLevel      = "UFFLOW_LOG_LEVEL"
)

// Worker path defaults.
const (
	DefaultResultsDir = "/output"
	DefaultToolsDir   = "/etc/oats/tools"
)

// WorkerConfig is everything one investigation worker needs, resolved
// from its environment at startup.
type WorkerConfig struct {
	Goal       string
	TurnBudget int

	// Provider is the explicit oracle provider request; empty defers to
	// whichever credential is present.
	Provider     string
	Model        string
	AnthropicKey string
	OpenAIKey    string

	// Temperature and MaxTokens are zero when unset; the oracle client
	// applies its own defaults then.
	Temperature float64
	MaxTokens   int

	PromptVersion string
	LogLevel      slog.Level

	ResultsDir string
	ToolsDir   string

	// RunbookURL optionally points at operator guidance fetched into the
	// prompt. A fetch failure is logged, not fatal.
	RunbookURL string

	// GithubToken authorizes runbook fetches from private repositories.
	GithubToken string

	// HardDeadline optionally bounds the whole run in-process. Zero means
	// the job's activeDeadlineSeconds is the only wall clock.
	HardDeadline time.Duration
}

// LoadWorkerFromEnv resolves and validates the worker configuration.
// A missing goal or an unparseable numeric setting is fatal; the caller
// turns the error into an error event and exit code 1.
func LoadWorkerFromEnv() (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		Goal:          os.Getenv(EnvGoal),
		TurnBudget:    DefaultTurnBudget,
		Provider:      os.Getenv(EnvLLMProvider),
		Model:         os.Getenv(EnvLLMModel),
		AnthropicKey:  os.Getenv(EnvAnthropicKey),
		OpenAIKey:     os.Getenv(EnvOpenAIKey),
		PromptVersion: os.Getenv(EnvPromptVersion),
		LogLevel:      slog.LevelInfo,
		ResultsDir:    DefaultResultsDir,
		ToolsDir:      DefaultToolsDir,
		RunbookURL:    os.Getenv(EnvRunbookURL),
		GithubToken:   os.Getenv(EnvGithubToken),
	}

	if cfg.Goal == "" {
		return nil, NewValidationError("worker", EnvGoal, ErrMissingRequiredField)
	}

	if v := os.Getenv(EnvMaxTurns); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, NewValidationError("worker", EnvMaxTurns,
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		if n < 1 {
			return nil, NewValidationError("worker", EnvMaxTurns,
				fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
		}
		cfg.TurnBudget = n
	}

	if v := os.Getenv(EnvTemperature); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, NewValidationError("worker", EnvTemperature,
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		cfg.Temperature = f
	}

	if v := os.Getenv(EnvMaxTokens); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, NewValidationError("worker", EnvMaxTokens,
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		cfg.MaxTokens = n
	}

	if v := os.Getenv(EnvHardDeadline); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, NewValidationError("worker", EnvHardDeadline,
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		cfg.HardDeadline = d
	}

	if v := os.Getenv(EnvResultsDir); v != "" {
		cfg.ResultsDir = v
	}
	if v := os.Getenv(EnvToolsDir); v != "" {
		cfg.ToolsDir = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		level, ok := ParseLogLevel(v)
		if !ok {
			slog.Warn("Unrecognized log level, using info", "value", v)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}
