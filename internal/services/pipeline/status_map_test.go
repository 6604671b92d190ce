package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vedahq/veda-call-service/internal/domain"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     domain.CallStatus
	}{
		{"initiated", domain.CallStatusInitiating},
		{"ringing", domain.CallStatusRinging},
		{"in-progress", domain.CallStatusInProgress},
		{"completed", domain.CallStatusCompleted},
		{"busy", domain.CallStatusMissed},
		{"no-answer", domain.CallStatusNoAnswer},
		{"canceled", domain.CallStatusCancelled},
		{"failed", domain.CallStatusFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapProviderStatus(tt.provider), "provider status %q", tt.provider)
	}
}

func TestMapProviderStatusUnknownPassesThrough(t *testing.T) {
	assert.Equal(t, domain.CallStatus("queued"), MapProviderStatus("queued"))
	assert.Equal(t, domain.CallStatus(""), MapProviderStatus(""))
}

func TestStatusEventType(t *testing.T) {
	assert.Equal(t, "call_ringing", StatusEventType("ringing"))
	assert.Equal(t, "call_no_answer", StatusEventType("no-answer"))
	assert.Equal(t, "call_in_progress", StatusEventType("in-progress"))
}
