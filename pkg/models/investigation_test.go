package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvestigationState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    InvestigationState
		terminal bool
	}{
		{StatePending, false},
		{StateRunning, false},
		{StateSucceeded, true},
		{StateFailed, true},
		{StateCancelled, true},
		{StateTimedOut, true},
		{InvestigationState("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
		})
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"uuid", "0b54e3f0-9c2d-4f6a-8a3e-1d2c3b4a5e6f", "0b54e3f0"},
		{"dash straddles the cut", "0b54e3-f09c2d4f6a8a", "0b54e3f0"},
		{"short id unchanged", "abc123", "abc123"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortID(tt.id))
		})
	}
}

func TestJobNameForID(t *testing.T) {
	assert.Equal(t, "investigation-0b54e3f0", JobNameForID("0b54e3f0-9c2d-4f6a-8a3e-1d2c3b4a5e6f"))
	assert.Equal(t, "investigation-abc", JobNameForID("abc"))
}
