package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use server
// configuration. This is the primary entry point for the control plane.
//
// Steps performed:
//  1. Start from compiled-in defaults
//  2. Merge the optional YAML file on top (env-expanded first)
//  3. Apply environment variable overrides
//  4. Validate the result
func Initialize(_ context.Context, path string) (*Config, error) {
	log := slog.With("config_file", path)
	log.Info("Initializing configuration")

	cfg := DefaultConfig()

	if path != "" {
		fileCfg, err := loadYAMLFile(path)
		if err != nil {
			return nil, NewLoadError(path, err)
		}
		// User values override defaults; zero values leave defaults alone.
		if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"namespace", cfg.Orchestrator.Namespace,
		"worker_image", cfg.Orchestrator.WorkerImage,
		"default_turn_budget", cfg.Investigations.DefaultTurnBudget)

	return cfg, nil
}

// loadYAMLFile reads one YAML file, expanding {{.VAR}} references against
// the environment before decoding.
func loadYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments adjust settings without
// shipping a YAML file. Environment wins over YAML and defaults.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		cfg.Server.HTTPPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("OATS_NAMESPACE"); v != "" {
		cfg.Orchestrator.Namespace = v
	}
	if v := os.Getenv("OATS_WORKER_IMAGE"); v != "" {
		cfg.Orchestrator.WorkerImage = v
	}
	if v := os.Getenv("OATS_SERVICE_ACCOUNT"); v != "" {
		cfg.Orchestrator.ServiceAccount = v
	}
	if v := os.Getenv("OATS_ORACLE_SECRET"); v != "" {
		cfg.Orchestrator.OracleSecret = v
	}
	if v := os.Getenv("KUBECONFIG"); v != "" && cfg.Orchestrator.Kubeconfig == "" {
		cfg.Orchestrator.Kubeconfig = v
	}

	if v := os.Getenv("OATS_JOB_TTL_SECONDS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return NewValidationError("orchestrator", "OATS_JOB_TTL_SECONDS",
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		cfg.Orchestrator.JobTTLSeconds = int32(n)
	}
	if v := os.Getenv("OATS_HARD_DEADLINE_SECONDS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return NewValidationError("orchestrator", "OATS_HARD_DEADLINE_SECONDS",
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		cfg.Orchestrator.HardDeadlineSeconds = n
	}
	if v := os.Getenv("OATS_DEFAULT_TURN_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewValidationError("investigations", "OATS_DEFAULT_TURN_BUDGET",
				fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
		cfg.Investigations.DefaultTurnBudget = n
	}

	return nil
}
