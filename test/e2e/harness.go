// Package e2e boots the whole control plane against a fake cluster and
// exercises it the way operators do: REST submissions, WebSocket
// streams, cancellations, and replays.
//
// Everything is real except the Kubernetes client: the API server, the
// investigation service with its lifecycle watchers, the stream manager
// and its log pumps all run as they do in production. Worker behavior is
// scripted per job through the FakeOrchestrator.
package e2e

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ufflow/oats/pkg/api"
	"github.com/ufflow/oats/pkg/config"
	"github.com/ufflow/oats/pkg/events"
	"github.com/ufflow/oats/pkg/metrics"
	"github.com/ufflow/oats/pkg/services"
	"github.com/ufflow/oats/pkg/slack"
)

// TestApp boots a complete oats control plane for e2e testing.
type TestApp struct {
	Config       *config.Config
	Orchestrator *FakeOrchestrator

	// Real infrastructure
	Service *services.InvestigationService
	Streams *events.StreamManager
	Server  *api.Server

	// Runtime
	BaseURL string // e.g. "http://127.0.0.1:54321"
	WSURL   string // e.g. "ws://127.0.0.1:54321/ws"

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	cfg          *config.Config
	slackService *slack.Service
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithConfig sets a custom config.
func WithConfig(cfg *config.Config) TestAppOption {
	return func(c *testAppConfig) { c.cfg = cfg }
}

// WithSlackService injects a Slack notification service, backed by a
// mock API server in tests.
func WithSlackService(svc *slack.Service) TestAppOption {
	return func(c *testAppConfig) { c.slackService = svc }
}

// NewTestApp creates and starts a full oats test instance on a random
// port. Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.cfg == nil {
		tc.cfg = defaultTestConfig()
	}

	// 1. Fake cluster.
	orch := NewFakeOrchestrator()

	// 2. Metrics on a fresh registry so parallel tests cannot collide.
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// 3. Domain service with real lifecycle watchers.
	store := services.NewStore()
	svc := services.NewInvestigationService(store, orch, tc.cfg.Investigations,
		tc.cfg.Orchestrator.Namespace, m, tc.slackService)

	// 4. Streaming.
	streams := events.NewStreamManager(svc, m, tc.cfg.Server.StreamWriteTimeout)
	svc.SetNotifier(streams)

	// 5. HTTP server on a random port.
	server := api.NewServer(tc.cfg.Server, svc, streams, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ts := httptest.NewServer(server.Handler())

	app := &TestApp{
		Config:       tc.cfg,
		Orchestrator: orch,
		Service:      svc,
		Streams:      streams,
		Server:       server,
		BaseURL:      ts.URL,
		WSURL:        "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		t:            t,
	}

	t.Cleanup(func() {
		svc.Stop()
		// Leaked WebSocket connections would make Close wait forever.
		ts.CloseClientConnections()
		ts.Close()
	})

	return app
}

// defaultTestConfig tightens the production defaults so job completion
// is noticed in milliseconds instead of seconds.
func defaultTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Investigations.WatchInterval = 20 * time.Millisecond
	cfg.Investigations.DefaultTurnBudget = 5
	cfg.Investigations.MaxTurnBudget = 10
	cfg.Investigations.RunbookDomains = []string{"github.com", "runbooks.test"}
	return cfg
}
