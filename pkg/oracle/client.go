// Package oracle implements the completion clients the reasoning engine
// drives: one per supported provider, sharing a jittered exponential
// retry policy and a per-call timeout. Providers translate the engine's
// system/user prompt pair into their vendor API and return the raw text
// reply; parsing stays with the engine.
package oracle

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ufflow/oats/pkg/agent"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultTemperature    = 0.1
	DefaultMaxTokens      = 4000
	DefaultTimeout        = 60 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 500 * time.Millisecond
)

// Config selects and tunes one provider client.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int

	// Timeout bounds each individual API call; retries get a fresh one.
	Timeout time.Duration

	// MaxAttempts counts the first call plus retries.
	MaxAttempts int

	// BackoffBase is the initial retry delay; it doubles per attempt with
	// jitter.
	BackoffBase time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.Model = DefaultAnthropicModel
		case ProviderOpenAI:
			c.Model = DefaultOpenAIModel
		}
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// New builds the client for the configured provider.
func New(cfg Config) (agent.OracleClient, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle provider %s: api key is required", cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// ResolveProvider picks the provider and credential to use. An explicit
// provider name wins and its key must be present; otherwise the provider
// follows the available credentials, Anthropic first.
func ResolveProvider(explicit, anthropicKey, openaiKey string) (provider, key string, err error) {
	switch explicit {
	case ProviderAnthropic:
		if anthropicKey == "" {
			return "", "", errors.New("provider anthropic selected but ANTHROPIC_API_KEY is not set")
		}
		return ProviderAnthropic, anthropicKey, nil
	case ProviderOpenAI:
		if openaiKey == "" {
			return "", "", errors.New("provider openai selected but OPENAI_API_KEY is not set")
		}
		return ProviderOpenAI, openaiKey, nil
	case "":
		if anthropicKey != "" {
			return ProviderAnthropic, anthropicKey, nil
		}
		if openaiKey != "" {
			return ProviderOpenAI, openaiKey, nil
		}
		return "", "", errors.New("no oracle credentials: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	default:
		return "", "", fmt.Errorf("unknown oracle provider %q", explicit)
	}
}
