package domain

import (
	"time"
)

// CallStatus represents the lifecycle state of a scheduled call
type CallStatus string

const (
	CallStatusScheduled  CallStatus = "scheduled"
	CallStatusInitiating CallStatus = "initiating"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusMissed     CallStatus = "missed"
	CallStatusCancelled  CallStatus = "cancelled"
	CallStatusFailed     CallStatus = "failed"
)

// statusRank orders the forward chain. Terminal failure states are not part
// of the chain; they are reachable from any non-terminal state.
var statusRank = map[CallStatus]int{
	CallStatusScheduled:  0,
	CallStatusInitiating: 1,
	CallStatusRinging:    2,
	CallStatusInProgress: 3,
	CallStatusCompleted:  4,
}

// IsTerminal reports whether s ends the call lifecycle.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusNoAnswer, CallStatusMissed, CallStatusCancelled, CallStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a call may move from one status to another.
// The forward chain is monotonic; failure states may be entered from any
// non-terminal state; an unknown target status is accepted as-is on a
// non-terminal call so provider vocabulary we have never seen still lands
// in the row for auditing.
func CanTransition(from, to CallStatus) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	if to.IsTerminal() && to != CallStatusCompleted {
		return true
	}
	toRank, knownTo := statusRank[to]
	if !knownTo {
		return true
	}
	fromRank, knownFrom := statusRank[from]
	if !knownFrom {
		return true
	}
	return toRank > fromRank
}

// ScheduledCall is one call attempt to a loved one. It is the pipeline's
// sole coordination point: the poller, initiator and the three Twilio
// webhooks all operate on this row.
type ScheduledCall struct {
	ID                    string     `json:"id" gorm:"column:id;primaryKey"`
	UserID                string     `json:"user_id" gorm:"column:user_id;index"`
	LovedOneID            string     `json:"loved_one_id" gorm:"column:loved_one_id;index"`
	ScheduledDate         time.Time  `json:"scheduled_date" gorm:"column:scheduled_date;index"`
	CallStatus            CallStatus `json:"call_status" gorm:"column:call_status;index"`
	CallSID               string     `json:"call_sid" gorm:"column:call_sid;index"`
	RetryCount            int        `json:"retry_count" gorm:"column:retry_count"`
	MaxRetries            int        `json:"max_retries" gorm:"column:max_retries"`
	FailureReason         string     `json:"failure_reason" gorm:"column:failure_reason"`
	Notes                 string     `json:"notes" gorm:"column:notes"`
	CallStartedAt         *time.Time `json:"call_started_at" gorm:"column:call_started_at"`
	CallAnsweredAt        *time.Time `json:"call_answered_at" gorm:"column:call_answered_at"`
	CallEndedAt           *time.Time `json:"call_ended_at" gorm:"column:call_ended_at"`
	ActualDurationSeconds int        `json:"actual_duration_seconds" gorm:"column:actual_duration_seconds"`
	CreatedAt             time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt             time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (ScheduledCall) TableName() string {
	return "scheduled_calls"
}

// CallContext is a scheduled call joined with its loved one and the ordered
// question list, as loaded by the initiator and the voice webhook.
type CallContext struct {
	Call      ScheduledCall
	LovedOne  LovedOne
	Questions []Question
}
