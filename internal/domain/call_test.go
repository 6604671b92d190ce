package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	terminal := []CallStatus{
		CallStatusCompleted,
		CallStatusNoAnswer,
		CallStatusMissed,
		CallStatusCancelled,
		CallStatusFailed,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	nonTerminal := []CallStatus{
		CallStatusScheduled,
		CallStatusInitiating,
		CallStatusRinging,
		CallStatusInProgress,
	}
	for _, s := range nonTerminal {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from CallStatus
		to   CallStatus
		want bool
	}{
		{"forward along the chain", CallStatusScheduled, CallStatusInitiating, true},
		{"initiating to ringing", CallStatusInitiating, CallStatusRinging, true},
		{"ringing to in_progress", CallStatusRinging, CallStatusInProgress, true},
		{"in_progress to completed", CallStatusInProgress, CallStatusCompleted, true},
		{"skip ahead is allowed", CallStatusInitiating, CallStatusInProgress, true},

		{"same status is a no-op", CallStatusRinging, CallStatusRinging, false},
		{"backward is rejected", CallStatusInProgress, CallStatusRinging, false},
		{"in_progress back to initiating", CallStatusInProgress, CallStatusInitiating, false},

		{"completed never reverts", CallStatusCompleted, CallStatusRinging, false},
		{"completed never fails", CallStatusCompleted, CallStatusFailed, false},
		{"no_answer is final", CallStatusNoAnswer, CallStatusInProgress, false},
		{"failed is final", CallStatusFailed, CallStatusCompleted, false},
		{"cancelled is final", CallStatusCancelled, CallStatusInitiating, false},

		{"failure from scheduled", CallStatusScheduled, CallStatusFailed, true},
		{"no_answer from ringing", CallStatusRinging, CallStatusNoAnswer, true},
		{"missed from ringing", CallStatusRinging, CallStatusMissed, true},
		{"cancel from scheduled", CallStatusScheduled, CallStatusCancelled, true},
		{"failure from in_progress", CallStatusInProgress, CallStatusFailed, true},

		{"completed requires forward rank", CallStatusScheduled, CallStatusCompleted, true},
		{"unknown target accepted on live call", CallStatusRinging, CallStatus("queued"), true},
		{"unknown target rejected on terminal call", CallStatusCompleted, CallStatus("queued"), false},
		{"unknown source accepted", CallStatus("queued"), CallStatusRinging, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	all := []CallStatus{
		CallStatusScheduled, CallStatusInitiating, CallStatusRinging,
		CallStatusInProgress, CallStatusCompleted, CallStatusNoAnswer,
		CallStatusMissed, CallStatusCancelled, CallStatusFailed,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
}
