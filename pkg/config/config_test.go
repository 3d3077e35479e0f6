package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.validate())

	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "default", cfg.Orchestrator.Namespace)
	assert.Equal(t, int32(300), cfg.Orchestrator.JobTTLSeconds)
	assert.Equal(t, int64(1800), cfg.Orchestrator.HardDeadlineSeconds)
	assert.Equal(t, 15, cfg.Investigations.DefaultTurnBudget)
	assert.Equal(t, 100, cfg.Investigations.MaxTurnBudget)
	assert.Equal(t, 2*time.Second, cfg.Investigations.WatchInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "missing http port",
			mutate: func(c *Config) { c.Server.HTTPPort = "" },
			errMsg: "http_port",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Server.LogLevel = "verbose" },
			errMsg: "log_level",
		},
		{
			name:   "zero stream write timeout",
			mutate: func(c *Config) { c.Server.StreamWriteTimeout = 0 },
			errMsg: "stream_write_timeout",
		},
		{
			name:   "missing namespace",
			mutate: func(c *Config) { c.Orchestrator.Namespace = "" },
			errMsg: "namespace",
		},
		{
			name:   "missing worker image",
			mutate: func(c *Config) { c.Orchestrator.WorkerImage = "" },
			errMsg: "worker_image",
		},
		{
			name:   "negative job ttl",
			mutate: func(c *Config) { c.Orchestrator.JobTTLSeconds = -1 },
			errMsg: "job_ttl_seconds",
		},
		{
			name:   "zero hard deadline",
			mutate: func(c *Config) { c.Orchestrator.HardDeadlineSeconds = 0 },
			errMsg: "hard_deadline_seconds",
		},
		{
			name:   "default budget above max",
			mutate: func(c *Config) { c.Investigations.DefaultTurnBudget = 101 },
			errMsg: "default_turn_budget",
		},
		{
			name:   "zero watch interval",
			mutate: func(c *Config) { c.Investigations.WatchInterval = 0 },
			errMsg: "watch_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input  string
		want   slog.Level
		wantOK bool
	}{
		{"", slog.LevelInfo, true},
		{"info", slog.LevelInfo, true},
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{" info ", slog.LevelInfo, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run("level "+tt.input, func(t *testing.T) {
			level, ok := ParseLogLevel(tt.input)
			assert.Equal(t, tt.want, level)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
