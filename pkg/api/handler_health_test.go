package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufflow/oats/pkg/config"
)

type stubStreams struct {
	connections int
}

func (s *stubStreams) HandleConnection(context.Context, *websocket.Conn) {}

func (s *stubStreams) ActiveConnections() int { return s.connections }

func TestHealthHandler_Healthy(t *testing.T) {
	svc := newFakeService()
	s := NewServer(config.ServerConfig{StreamWriteTimeout: time.Second}, svc, &stubStreams{connections: 3}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["orchestrator"].Status)
	assert.Contains(t, resp.Checks["stream_manager"].Message, "3 active connections")
}

func TestHealthHandler_OrchestratorDown(t *testing.T) {
	svc := newFakeService()
	svc.pingErr = errors.New("connection refused")
	s := newTestServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Checks["orchestrator"].Status)
	assert.Contains(t, resp.Checks["orchestrator"].Message, "connection refused")
}
