package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ufflow/oats/pkg/services"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "validation error → 400 with field detail",
			err:      services.NewValidationError("turn_budget", "must be between 1 and 100"),
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid turn_budget",
		},
		{
			name:     "wrapped validation error → 400",
			err:      fmt.Errorf("create: %w", services.NewValidationError("goal", "goal is required")),
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid goal",
		},
		{
			name:     "not found → 404",
			err:      services.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantMsg:  "investigation not found",
		},
		{
			name:     "orchestrator unavailable → 503",
			err:      fmt.Errorf("%w: dial tcp: connection refused", services.ErrOrchestratorUnavailable),
			wantCode: http.StatusServiceUnavailable,
			wantMsg:  "orchestrator unavailable",
		},
		{
			name:     "unknown error → 500 without detail leakage",
			err:      errors.New("pq: password authentication failed"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.wantCode, he.Code)
			assert.Contains(t, fmt.Sprint(he.Message), tt.wantMsg)
		})
	}
}
