// oats control plane server: serves the HTTP/WebSocket API, materializes
// investigations as Kubernetes Jobs, and streams worker events to clients.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ufflow/oats/pkg/api"
	"github.com/ufflow/oats/pkg/cleanup"
	"github.com/ufflow/oats/pkg/config"
	"github.com/ufflow/oats/pkg/events"
	"github.com/ufflow/oats/pkg/metrics"
	"github.com/ufflow/oats/pkg/orchestrator"
	"github.com/ufflow/oats/pkg/services"
	"github.com/ufflow/oats/pkg/slack"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config",
		getEnv("OATS_CONFIG", ""),
		"Path to YAML configuration file (optional; defaults plus environment apply without it)")
	flag.Parse()

	// Load .env from next to the config file, or the working directory
	envPath := ".env"
	if *configPath != "" {
		envPath = filepath.Join(filepath.Dir(*configPath), ".env")
	}
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting oats control plane",
		"http_port", cfg.Server.HTTPPort,
		"namespace", cfg.Orchestrator.Namespace)

	// 2. Connect to the cluster
	// The cluster is the source of truth for every investigation; a
	// control plane that cannot reach it has nothing to serve.
	orch, err := orchestrator.NewClient(cfg.Orchestrator)
	if err != nil {
		slog.Error("Failed to create kubernetes client", "error", err)
		os.Exit(1)
	}
	if err := orch.Ping(ctx); err != nil {
		slog.Error("Cluster unreachable", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to cluster", "namespace", cfg.Orchestrator.Namespace)

	// 3. Initialize metrics
	m := metrics.New(prometheus.DefaultRegisterer)

	// 4. Slack notifications (optional)
	var slackSvc *slack.Service
	if cfg.Slack.Enabled {
		slackSvc = slack.NewService(slack.ServiceConfig{
			Token:        cfg.Slack.Token(),
			Channel:      cfg.Slack.Channel,
			DashboardURL: cfg.Slack.DashboardURL,
		})
		if slackSvc == nil {
			slog.Warn("Slack notifications enabled but bot token is missing; notifications stay off",
				"token_env", cfg.Slack.TokenEnv)
		} else {
			slog.Info("Slack notifications enabled", "channel", cfg.Slack.Channel)
		}
	}

	// 5. Domain services
	store := services.NewStore()
	svc := services.NewInvestigationService(store, orch, cfg.Investigations,
		cfg.Orchestrator.Namespace, m, slackSvc)
	slog.Info("Services initialized")

	// 6. Streaming infrastructure
	streams := events.NewStreamManager(svc, m, cfg.Server.StreamWriteTimeout)
	svc.SetNotifier(streams)

	// 7. Retention pruning
	cleanupSvc := cleanup.NewService(svc, cfg.Investigations.Retention, cfg.Investigations.PruneInterval)
	cleanupSvc.Start(ctx)

	// 8. Start HTTP server (non-blocking)
	httpServer := api.NewServer(cfg.Server, svc, streams, metrics.Handler())
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("oats started successfully",
		"worker_image", cfg.Orchestrator.WorkerImage,
		"default_turn_budget", cfg.Investigations.DefaultTurnBudget)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown
	cleanupSvc.Stop()

	// Stop lifecycle watchers (bounded: each wakes at its next poll tick)
	watcherShutdownCtx, watcherCancel := context.WithTimeout(ctx, 2*cfg.Investigations.WatchInterval)
	defer watcherCancel()

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Lifecycle watchers stopped gracefully")
	case <-watcherShutdownCtx.Done():
		slog.Warn("Watcher shutdown timeout exceeded; worker jobs keep running under their cluster TTL")
	}

	// Stop HTTP server with its own timeout budget
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
