// Package cleanup enforces the record store's retention policy.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops terminal investigation records older than the retention
// window and reports how many went.
type Pruner interface {
	PruneTerminal(retention time.Duration) int
}

// Service periodically prunes terminal investigation records. The record
// store only serves the API; the cluster's job log TTL governs how long
// event history itself survives, so pruning here is safe and idempotent.
type Service struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(pruner Pruner, retention, interval time.Duration) *Service {
	return &Service{
		pruner:    pruner,
		retention: retention,
		interval:  interval,
	}
}

// Start launches the background prune loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"retention", s.retention,
		"interval", s.interval)
}

// Stop signals the prune loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.prune()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Service) prune() {
	if count := s.pruner.PruneTerminal(s.retention); count > 0 {
		slog.Info("Retention: pruned terminal investigations", "count", count)
	}
}
