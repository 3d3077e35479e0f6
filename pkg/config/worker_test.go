package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearWorkerEnv blanks every variable the worker reads so ambient
// environment does not bleed into assertions.
func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvGoal, EnvMaxTurns, EnvResultsDir, EnvToolsDir, EnvHardDeadline,
		EnvRunbookURL, EnvGithubToken,
		EnvAnthropicKey, EnvOpenAIKey, EnvLLMProvider, EnvLLMModel,
		EnvTemperature, EnvMaxTokens, EnvPromptVersion, EnvLogLevel,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWorkerFromEnv_Defaults(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv(EnvGoal, "api pods crashlooping in prod")
	t.Setenv(EnvAnthropicKey, "sk-ant-test")

	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "api pods crashlooping in prod", cfg.Goal)
	assert.Equal(t, DefaultTurnBudget, cfg.TurnBudget)
	assert.Equal(t, "sk-ant-test", cfg.AnthropicKey)
	assert.Empty(t, cfg.Provider)
	assert.Empty(t, cfg.Model)
	assert.Zero(t, cfg.Temperature)
	assert.Zero(t, cfg.MaxTokens)
	assert.Equal(t, DefaultResultsDir, cfg.ResultsDir)
	assert.Equal(t, DefaultToolsDir, cfg.ToolsDir)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Zero(t, cfg.HardDeadline)
}

func TestLoadWorkerFromEnv_AllSettings(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv(EnvGoal, "disk pressure on node-7")
	t.Setenv(EnvMaxTurns, "25")
	t.Setenv(EnvLLMProvider, "openai")
	t.Setenv(EnvLLMModel, "gpt-4o-mini")
	t.Setenv(EnvOpenAIKey, "sk-test")
	t.Setenv(EnvTemperature, "0.3")
	t.Setenv(EnvMaxTokens, "2048")
	t.Setenv(EnvPromptVersion, "v3.1")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvResultsDir, "/tmp/results")
	t.Setenv(EnvToolsDir, "/tmp/tools")
	t.Setenv(EnvHardDeadline, "30m")
	t.Setenv(EnvRunbookURL, "https://github.com/acme/runbooks/blob/main/disk.md")
	t.Setenv(EnvGithubToken, "ghp_test")

	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.TurnBudget)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "sk-test", cfg.OpenAIKey)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, "v3.1", cfg.PromptVersion)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/results", cfg.ResultsDir)
	assert.Equal(t, "/tmp/tools", cfg.ToolsDir)
	assert.Equal(t, 30*time.Minute, cfg.HardDeadline)
	assert.Equal(t, "https://github.com/acme/runbooks/blob/main/disk.md", cfg.RunbookURL)
	assert.Equal(t, "ghp_test", cfg.GithubToken)
}

func TestLoadWorkerFromEnv_MissingGoal(t *testing.T) {
	clearWorkerEnv(t)

	_, err := LoadWorkerFromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
	assert.Contains(t, err.Error(), EnvGoal)
}

func TestLoadWorkerFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric max turns", EnvMaxTurns, "many"},
		{"zero max turns", EnvMaxTurns, "0"},
		{"negative max turns", EnvMaxTurns, "-3"},
		{"non-numeric temperature", EnvTemperature, "warm"},
		{"non-numeric max tokens", EnvMaxTokens, "lots"},
		{"malformed hard deadline", EnvHardDeadline, "half an hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearWorkerEnv(t)
			t.Setenv(EnvGoal, "goal")
			t.Setenv(tt.key, tt.value)

			_, err := LoadWorkerFromEnv()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoadWorkerFromEnv_UnknownLogLevelFallsBack(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv(EnvGoal, "goal")
	t.Setenv(EnvLogLevel, "chatty")

	cfg, err := LoadWorkerFromEnv()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}
