package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ufflow/oats/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /healthz.
// Returns a minimal, safe response suitable for unauthenticated access.
// Only the orchestrator connection is checked; the oracle is not, so an
// LLM provider outage cannot get the control plane restarted.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.investigations.Ping(reqCtx); err != nil {
		status = healthStatusUnhealthy
		checks["orchestrator"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["orchestrator"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.streams != nil {
		checks["stream_manager"] = HealthCheck{
			Status:  healthStatusHealthy,
			Message: fmt.Sprintf("%d active connections", s.streams.ActiveConnections()),
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	})
}
