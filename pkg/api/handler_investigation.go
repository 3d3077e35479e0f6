package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/services"
)

// startInvestigationHandler handles POST /investigate.
func (s *Server) startInvestigationHandler(c *echo.Context) error {
	var req InvestigateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	inv, err := s.investigations.Create(c.Request().Context(), services.CreateInput{
		Goal:       req.Goal,
		Namespace:  req.TargetNamespace,
		TurnBudget: req.TurnBudget,
		RunbookURL: req.RunbookURL,
	})
	if err != nil {
		return mapServiceError(err)
	}

	slog.Info("Investigation accepted",
		"investigation_id", inv.ID,
		"namespace", inv.Namespace,
		"requested_by", requestUser(c))

	return c.JSON(http.StatusOK, &InvestigateResponse{
		InvestigationID: inv.ID,
		JobName:         inv.JobName,
		LogStreamHint:   logStreamHint(inv),
	})
}

// logStreamHint tells operators how to follow the worker directly,
// bypassing the control plane.
func logStreamHint(inv *models.Investigation) string {
	return fmt.Sprintf("kubectl logs -f job/%s -n %s", inv.JobName, inv.Namespace)
}

// getInvestigationHandler handles GET /investigations/:id.
func (s *Server) getInvestigationHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "investigation id is required")
	}

	inv, err := s.investigations.Get(id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &StatusResponse{
		State:      inv.State,
		CreatedAt:  inv.CreatedAt,
		TerminalAt: inv.TerminalAt,
	})
}

// listInvestigationsHandler handles GET /investigations.
func (s *Server) listInvestigationsHandler(c *echo.Context) error {
	var filter map[models.InvestigationState]bool
	if v := c.QueryParam("state"); v != "" {
		filter = make(map[models.InvestigationState]bool)
		for _, st := range strings.Split(v, ",") {
			state := models.InvestigationState(st)
			if !knownState(state) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid state: "+st)
			}
			filter[state] = true
		}
	}

	all := s.investigations.List()
	summaries := make([]InvestigationSummary, 0, len(all))
	for _, inv := range all {
		if filter != nil && !filter[inv.State] {
			continue
		}
		summaries = append(summaries, InvestigationSummary{
			InvestigationID: inv.ID,
			Goal:            inv.Goal,
			Namespace:       inv.Namespace,
			JobName:         inv.JobName,
			State:           inv.State,
			Error:           inv.Error,
			CreatedAt:       inv.CreatedAt,
			TerminalAt:      inv.TerminalAt,
		})
	}

	return c.JSON(http.StatusOK, &ListResponse{
		Investigations: summaries,
		Total:          len(summaries),
	})
}

func knownState(state models.InvestigationState) bool {
	switch state {
	case models.StatePending, models.StateRunning, models.StateSucceeded,
		models.StateFailed, models.StateCancelled, models.StateTimedOut:
		return true
	}
	return false
}

// cancelInvestigationHandler handles DELETE /investigations/:id.
// Idempotent: cancelling an already-terminal investigation is a no-op
// success.
func (s *Server) cancelInvestigationHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "investigation id is required")
	}

	if err := s.investigations.Cancel(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}

	slog.Info("Investigation cancelled",
		"investigation_id", id,
		"requested_by", requestUser(c))

	return c.NoContent(http.StatusNoContent)
}

// investigationLogsHandler handles GET /investigations/:id/logs: the
// worker's retained event stream, replayed as a JSON array. An
// investigation whose job logs are gone replays empty rather than
// erroring.
func (s *Server) investigationLogsHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "investigation id is required")
	}

	events, err := s.investigations.EventLog(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &LogsResponse{
		InvestigationID: id,
		Events:          events,
	})
}
