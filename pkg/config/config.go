// Package config loads and validates configuration for the control plane
// server and the investigation worker. The server reads an optional YAML
// file merged over compiled-in defaults, with environment variables
// winning over both. The worker is configured purely from its environment
// because the control plane injects everything through the job spec.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Built-in defaults. YAML and environment values override them.
const (
	DefaultHTTPPort            = "8080"
	DefaultNamespace           = "default"
	DefaultWorkerImage         = "ghcr.io/ufflow/oats-worker:latest"
	DefaultOracleSecret        = "oracle-credentials"
	DefaultJobTTLSeconds       = 300
	DefaultHardDeadlineSeconds = 1800
	DefaultTurnBudget          = 15
	DefaultMaxTurnBudget       = 100
	DefaultWatchInterval       = 2 * time.Second
	DefaultStreamWriteTimeout  = 10 * time.Second
	DefaultRetention           = 24 * time.Hour
	DefaultPruneInterval       = 10 * time.Minute
	DefaultSlackTokenEnv       = "SLACK_BOT_TOKEN"
)

// DefaultRunbookDomains is the allowlist applied to runbook URLs when the
// configuration names none.
var DefaultRunbookDomains = []string{"github.com", "raw.githubusercontent.com"}

// Config is the control plane configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Orchestrator   OrchestratorConfig   `yaml:"orchestrator"`
	Investigations InvestigationsConfig `yaml:"investigations"`
	Slack          SlackConfig          `yaml:"slack"`
}

// ServerConfig groups the HTTP and streaming settings.
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
	LogLevel string `yaml:"log_level"`

	// AllowedWSOrigins lists additional origins accepted on the streaming
	// endpoint besides the host itself.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`

	// StreamWriteTimeout bounds one event write to one subscriber. A
	// client slower than this is disconnected rather than allowed to
	// stall the broadcast.
	StreamWriteTimeout time.Duration `yaml:"stream_write_timeout"`
}

// OrchestratorConfig describes how investigation jobs are materialized.
type OrchestratorConfig struct {
	// Namespace receives worker jobs when a request does not name one.
	Namespace string `yaml:"namespace"`

	WorkerImage    string `yaml:"worker_image"`
	ServiceAccount string `yaml:"service_account"`

	// OracleSecret is the name of the secret mounted into workers via
	// envFrom; it carries the oracle API keys.
	OracleSecret string `yaml:"oracle_secret"`

	// JobTTLSeconds is how long a finished job and its logs stay around
	// for replay before the orchestrator garbage-collects them.
	JobTTLSeconds int32 `yaml:"job_ttl_seconds"`

	// HardDeadlineSeconds caps worker wall-clock runtime.
	HardDeadlineSeconds int64 `yaml:"hard_deadline_seconds"`

	// Kubeconfig overrides the default credential resolution (in-cluster
	// first, then the standard kubeconfig locations).
	Kubeconfig string `yaml:"kubeconfig"`

	// WorkerEnv is appended verbatim to every worker container, for
	// oracle tuning knobs like UFFLOW_LLM_MODEL that apply fleet-wide.
	WorkerEnv map[string]string `yaml:"worker_env"`
}

// InvestigationsConfig bounds investigation submissions.
type InvestigationsConfig struct {
	DefaultTurnBudget int `yaml:"default_turn_budget"`
	MaxTurnBudget     int `yaml:"max_turn_budget"`

	// WatchInterval is the poll cadence for job status while an
	// investigation is running.
	WatchInterval time.Duration `yaml:"watch_interval"`

	// Retention is how long terminal investigations stay in the record
	// store; PruneInterval is how often expired ones are dropped.
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`

	// RunbookDomains restricts where runbook URLs may point.
	RunbookDomains []string `yaml:"runbook_domains"`
}

// SlackConfig enables terminal-state notifications to a Slack channel.
// Disabled unless both the channel and the token are present.
type SlackConfig struct {
	Enabled bool `yaml:"enabled"`

	// TokenEnv names the environment variable holding the bot token.
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`

	// DashboardURL, when set, adds deep links into an operator dashboard
	// to every notification.
	DashboardURL string `yaml:"dashboard_url"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:           DefaultHTTPPort,
			LogLevel:           "info",
			StreamWriteTimeout: DefaultStreamWriteTimeout,
		},
		Orchestrator: OrchestratorConfig{
			Namespace:           DefaultNamespace,
			WorkerImage:         DefaultWorkerImage,
			OracleSecret:        DefaultOracleSecret,
			JobTTLSeconds:       DefaultJobTTLSeconds,
			HardDeadlineSeconds: DefaultHardDeadlineSeconds,
		},
		Investigations: InvestigationsConfig{
			DefaultTurnBudget: DefaultTurnBudget,
			MaxTurnBudget:     DefaultMaxTurnBudget,
			WatchInterval:     DefaultWatchInterval,
			Retention:         DefaultRetention,
			PruneInterval:     DefaultPruneInterval,
			RunbookDomains:    append([]string(nil), DefaultRunbookDomains...),
		},
		Slack: SlackConfig{
			TokenEnv: DefaultSlackTokenEnv,
		},
	}
}

// validate checks ranges and required fields. A bad configuration is
// fatal at startup, never patched over.
func (c *Config) validate() error {
	if c.Server.HTTPPort == "" {
		return NewValidationError("server", "http_port", ErrMissingRequiredField)
	}
	if _, ok := ParseLogLevel(c.Server.LogLevel); !ok {
		return NewValidationError("server", "log_level",
			fmt.Errorf("%w: %q", ErrInvalidValue, c.Server.LogLevel))
	}
	if c.Server.StreamWriteTimeout <= 0 {
		return NewValidationError("server", "stream_write_timeout",
			errors.New("must be positive"))
	}

	if c.Orchestrator.Namespace == "" {
		return NewValidationError("orchestrator", "namespace", ErrMissingRequiredField)
	}
	if c.Orchestrator.WorkerImage == "" {
		return NewValidationError("orchestrator", "worker_image", ErrMissingRequiredField)
	}
	if c.Orchestrator.JobTTLSeconds <= 0 {
		return NewValidationError("orchestrator", "job_ttl_seconds",
			errors.New("must be positive"))
	}
	if c.Orchestrator.HardDeadlineSeconds <= 0 {
		return NewValidationError("orchestrator", "hard_deadline_seconds",
			errors.New("must be positive"))
	}

	inv := c.Investigations
	if inv.MaxTurnBudget <= 0 {
		return NewValidationError("investigations", "max_turn_budget",
			errors.New("must be positive"))
	}
	if inv.DefaultTurnBudget <= 0 || inv.DefaultTurnBudget > inv.MaxTurnBudget {
		return NewValidationError("investigations", "default_turn_budget",
			fmt.Errorf("must be in 1..%d", inv.MaxTurnBudget))
	}
	if inv.WatchInterval <= 0 {
		return NewValidationError("investigations", "watch_interval",
			errors.New("must be positive"))
	}
	if inv.Retention <= 0 {
		return NewValidationError("investigations", "retention",
			errors.New("must be positive"))
	}
	if inv.PruneInterval <= 0 {
		return NewValidationError("investigations", "prune_interval",
			errors.New("must be positive"))
	}

	if c.Slack.Enabled && c.Slack.Channel == "" {
		return NewValidationError("slack", "channel", ErrMissingRequiredField)
	}

	return nil
}

// SlogLevel returns the configured server log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLogLevel(c.Server.LogLevel)
	return level
}

// Token reads the bot token from the configured environment variable.
func (s SlackConfig) Token() string {
	env := s.TokenEnv
	if env == "" {
		env = DefaultSlackTokenEnv
	}
	return os.Getenv(env)
}

// ParseLogLevel maps a level name to its slog level. Empty means info.
// ok is false for unrecognized names; the returned level is still usable.
func ParseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
