package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ufflow/oats/pkg/config"
	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/orchestrator"
	"github.com/ufflow/oats/pkg/runbook"
	"github.com/ufflow/oats/pkg/slack"
)

// maxEventLineBytes bounds one NDJSON event line during log replay.
// Funneled observations keep worker lines small, but a malformed worker
// must not be able to wedge the control plane.
const maxEventLineBytes = 1024 * 1024

// Orchestrator is the cluster surface the service needs. The Kubernetes
// client implements it; tests substitute a fake.
type Orchestrator interface {
	CreateInvestigationJob(ctx context.Context, req orchestrator.CreateJobRequest) error
	JobStatus(ctx context.Context, namespace, name string) (*orchestrator.JobStatus, error)
	DeleteJob(ctx context.Context, namespace, name string) error
	StreamLogs(ctx context.Context, namespace, jobName string, follow bool) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}

// TerminalNotifier is told when an investigation reaches a terminal
// state. The stream manager implements it to push a final status frame.
type TerminalNotifier interface {
	InvestigationTerminal(id string, state models.InvestigationState, detail string)
}

// Stats records lifecycle metrics. Nil is tolerated.
type Stats interface {
	InvestigationStarted()
	InvestigationTerminal(state string, duration time.Duration)
}

// CreateInput is one investigation submission, already bound from the
// transport layer.
type CreateInput struct {
	Goal       string
	Namespace  string
	TurnBudget int
	RunbookURL string
}

// InvestigationService owns the investigation lifecycle: validate,
// materialize a worker job, watch it to a terminal state, and serve
// reads along the way.
type InvestigationService struct {
	store            *Store
	orch             Orchestrator
	cfg              config.InvestigationsConfig
	defaultNamespace string
	stats            Stats
	slackService     *slack.Service

	mu       sync.Mutex
	notifier TerminalNotifier

	watchers sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewInvestigationService wires the service. stats and slackService may
// be nil.
func NewInvestigationService(store *Store, orch Orchestrator, cfg config.InvestigationsConfig, defaultNamespace string, stats Stats, slackService *slack.Service) *InvestigationService {
	if stats == nil {
		stats = noopStats{}
	}
	return &InvestigationService{
		store:            store,
		orch:             orch,
		cfg:              cfg,
		defaultNamespace: defaultNamespace,
		stats:            stats,
		slackService:     slackService,
		stopCh:           make(chan struct{}),
	}
}

// SetNotifier links the stream manager after construction; the manager
// needs the service too, so one side has to be wired late.
func (s *InvestigationService) SetNotifier(n TerminalNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *InvestigationService) terminalNotifier() TerminalNotifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

// Create validates the submission, records it, and materializes the
// worker job. The returned record is already in the running state unless
// job creation failed.
func (s *InvestigationService) Create(ctx context.Context, in CreateInput) (*models.Investigation, error) {
	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		return nil, NewValidationError("goal", "must not be empty")
	}

	budget := in.TurnBudget
	if budget == 0 {
		budget = s.cfg.DefaultTurnBudget
	}
	if budget < 1 || budget > s.cfg.MaxTurnBudget {
		return nil, NewValidationError("turn_budget", "must be between 1 and %d", s.cfg.MaxTurnBudget)
	}

	namespace := in.Namespace
	if namespace == "" {
		namespace = s.defaultNamespace
	}

	if err := runbook.ValidateURL(in.RunbookURL, s.cfg.RunbookDomains); err != nil {
		return nil, NewValidationError("runbook_url", "%s", err)
	}

	id := uuid.New().String()
	inv := &models.Investigation{
		ID:         id,
		Goal:       goal,
		Namespace:  namespace,
		TurnBudget: budget,
		RunbookURL: in.RunbookURL,
		JobName:    models.JobNameForID(id),
		State:      models.StatePending,
		CreatedAt:  time.Now().UTC(),
	}
	s.store.Put(inv)
	s.stats.InvestigationStarted()

	err := s.orch.CreateInvestigationJob(ctx, orchestrator.CreateJobRequest{
		InvestigationID: inv.ID,
		JobName:         inv.JobName,
		Namespace:       inv.Namespace,
		Goal:            inv.Goal,
		TurnBudget:      inv.TurnBudget,
		RunbookURL:      inv.RunbookURL,
	})
	if err != nil {
		s.finish(inv.ID, models.StateFailed, fmt.Sprintf("job creation failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrOrchestratorUnavailable, err)
	}

	started, ok := s.store.Transition(inv.ID, models.StateRunning, "")
	if !ok {
		// Only possible if something cancelled within the same millisecond.
		return s.mustGet(inv.ID), nil
	}
	s.watchAsync(started)

	// Slack delivery is fail-open and stays off the request path.
	if s.slackService != nil {
		go s.slackService.NotifyInvestigationStarted(context.Background(), started)
	}

	slog.Info("Investigation started",
		"investigation_id", started.ID,
		"job", started.JobName,
		"namespace", started.Namespace,
		"turn_budget", started.TurnBudget)
	return started, nil
}

// Get returns one investigation record.
func (s *InvestigationService) Get(id string) (*models.Investigation, error) {
	inv, ok := s.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return inv, nil
}

// List returns all records, most recent first.
func (s *InvestigationService) List() []*models.Investigation {
	return s.store.List()
}

// Cancel tears down the worker job and marks the record cancelled.
// Cancelling a terminal investigation is a no-op, not an error: the
// caller wanted it stopped and it is stopped.
func (s *InvestigationService) Cancel(ctx context.Context, id string) error {
	inv, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if inv.State.IsTerminal() {
		return nil
	}

	if err := s.orch.DeleteJob(ctx, inv.Namespace, inv.JobName); err != nil {
		return fmt.Errorf("%w: %v", ErrOrchestratorUnavailable, err)
	}
	s.finish(id, models.StateCancelled, "cancelled by operator")
	return nil
}

// EventLog replays the worker's retained event stream. An investigation
// whose logs are gone (TTL expired, pod never scheduled) replays empty.
func (s *InvestigationService) EventLog(ctx context.Context, id string) ([]*models.Event, error) {
	inv, ok := s.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	rc, err := s.orch.StreamLogs(ctx, inv.Namespace, inv.JobName, false)
	if errors.Is(err, orchestrator.ErrJobNotFound) || errors.Is(err, orchestrator.ErrNoWorkerPod) {
		return []*models.Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrchestratorUnavailable, err)
	}
	defer rc.Close()

	events := []*models.Event{}
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), maxEventLineBytes)
	for scanner.Scan() {
		if ev, ok := models.ParseEventLine(scanner.Bytes()); ok {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read worker log: %w", err)
	}
	return events, nil
}

// StreamLogs opens the raw worker log stream for one investigation. The
// stream manager's pumps consume it and filter event lines out of it.
func (s *InvestigationService) StreamLogs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	inv, ok := s.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.orch.StreamLogs(ctx, inv.Namespace, inv.JobName, follow)
}

// PruneTerminal drops terminal records older than the retention window.
func (s *InvestigationService) PruneTerminal(retention time.Duration) int {
	return s.store.PruneTerminal(time.Now().Add(-retention))
}

// Ping reports orchestrator reachability for health checks.
func (s *InvestigationService) Ping(ctx context.Context) error {
	return s.orch.Ping(ctx)
}

// Stop halts the watch loops and waits for them. Running jobs keep
// running in the cluster under their TTL; a restarted control plane
// starts from an empty record store.
func (s *InvestigationService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.watchers.Wait()
}

// finish moves a record to a terminal state exactly once and fans the
// fact out to metrics and the stream manager. Losing the transition race
// means someone else finished it; that is fine.
func (s *InvestigationService) finish(id string, state models.InvestigationState, detail string) {
	inv, ok := s.store.Transition(id, state, detail)
	if !ok {
		return
	}
	s.stats.InvestigationTerminal(string(state), time.Since(inv.CreatedAt))
	slog.Info("Investigation finished",
		"investigation_id", id,
		"state", state,
		"detail", detail)
	if n := s.terminalNotifier(); n != nil {
		n.InvestigationTerminal(id, state, detail)
	}
	if s.slackService != nil {
		go s.slackService.NotifyInvestigationCompleted(context.Background(), inv)
	}
}

func (s *InvestigationService) mustGet(id string) *models.Investigation {
	inv, _ := s.store.Get(id)
	return inv
}

type noopStats struct{}

func (noopStats) InvestigationStarted() {}

func (noopStats) InvestigationTerminal(string, time.Duration) {}
