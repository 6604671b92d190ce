package pipeline

import (
	"strings"

	"github.com/vedahq/veda-call-service/internal/domain"
)

// providerStatusMap translates Twilio call-status vocabulary to ours.
var providerStatusMap = map[string]domain.CallStatus{
	"initiated":   domain.CallStatusInitiating,
	"ringing":     domain.CallStatusRinging,
	"in-progress": domain.CallStatusInProgress,
	"completed":   domain.CallStatusCompleted,
	"busy":        domain.CallStatusMissed,
	"no-answer":   domain.CallStatusNoAnswer,
	"canceled":    domain.CallStatusCancelled,
	"failed":      domain.CallStatusFailed,
}

// MapProviderStatus maps a provider status string to the internal status.
// Unknown values pass through unchanged.
func MapProviderStatus(providerStatus string) domain.CallStatus {
	if mapped, ok := providerStatusMap[providerStatus]; ok {
		return mapped
	}
	return domain.CallStatus(providerStatus)
}

// StatusEventType names the audit entry for one provider status event,
// e.g. "no-answer" becomes call_no_answer.
func StatusEventType(providerStatus string) string {
	return "call_" + strings.ReplaceAll(providerStatus, "-", "_")
}
