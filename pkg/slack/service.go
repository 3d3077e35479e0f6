package slack

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ufflow/oats/pkg/models"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service handles Slack notification delivery for investigation
// lifecycle changes. Nil-safe: all methods are no-ops when service is
// nil, so callers never guard.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger

	// threads remembers each start notice's timestamp so the terminal
	// notice lands in the same thread. Entries are dropped on terminal
	// delivery; every watched investigation terminates in-process.
	mu      sync.Mutex
	threads map[string]string
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return NewServiceWithClient(NewClient(cfg.Token, cfg.Channel), cfg.DashboardURL)
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
		threads:      make(map[string]string),
	}
}

// NotifyInvestigationStarted posts the submission notice and caches its
// timestamp for threading the terminal notice.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyInvestigationStarted(ctx context.Context, inv *models.Investigation) {
	if s == nil {
		return
	}

	blocks := BuildStartedMessage(inv, s.dashboardURL)
	ts, err := s.client.PostMessage(ctx, blocks, "", 5*time.Second)
	if err != nil {
		s.logger.Error("Failed to send Slack start notification",
			"investigation_id", inv.ID,
			"error", err)
		return
	}

	s.mu.Lock()
	s.threads[inv.ID] = ts
	s.mu.Unlock()
}

// NotifyInvestigationCompleted posts the terminal notice, threaded under
// the start notice when that delivery succeeded.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyInvestigationCompleted(ctx context.Context, inv *models.Investigation) {
	if s == nil {
		return
	}

	s.mu.Lock()
	threadTS := s.threads[inv.ID]
	delete(s.threads, inv.ID)
	s.mu.Unlock()

	blocks := BuildTerminalMessage(inv, s.dashboardURL)
	if _, err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack notification",
			"investigation_id", inv.ID,
			"state", inv.State,
			"error", err)
	}
}
