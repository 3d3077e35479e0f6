package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/orchestrator"
)

// statusPollTimeout bounds one job status call inside the watch loop.
const statusPollTimeout = 10 * time.Second

func (s *InvestigationService) watchAsync(inv *models.Investigation) {
	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		s.watchJob(inv.ID, inv.Namespace, inv.JobName)
	}()
}

// watchJob polls the worker job until it reaches a terminal phase or the
// record goes terminal some other way (cancel, prune). Poll errors are
// logged and retried; the job's activeDeadlineSeconds guarantees the
// loop cannot run forever.
func (s *InvestigationService) watchJob(id, namespace, jobName string) {
	ticker := time.NewTicker(s.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		current, ok := s.store.Get(id)
		if !ok || current.State.IsTerminal() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), statusPollTimeout)
		status, err := s.orch.JobStatus(ctx, namespace, jobName)
		cancel()

		if errors.Is(err, orchestrator.ErrJobNotFound) {
			// Deleted underneath us without a cancel through the API,
			// e.g. a kubectl delete. The investigation cannot finish.
			s.finish(id, models.StateFailed, "worker job vanished before completion")
			return
		}
		if err != nil {
			slog.Warn("Job status poll failed",
				"investigation_id", id,
				"job", jobName,
				"error", err)
			continue
		}

		switch status.Phase {
		case orchestrator.JobSucceeded:
			s.finish(id, models.StateSucceeded, "")
			return
		case orchestrator.JobFailed:
			if status.Reason == orchestrator.ReasonDeadlineExceeded {
				s.finish(id, models.StateTimedOut, "hard deadline exceeded")
				return
			}
			detail := "worker job failed"
			if status.Reason != "" {
				detail = fmt.Sprintf("worker job failed: %s", status.Reason)
			}
			s.finish(id, models.StateFailed, detail)
			return
		default:
			// Pending or active: keep polling.
		}
	}
}
