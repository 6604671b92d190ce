package domain

import (
	"time"
)

// Pipeline event types recorded in call_logs. Status callbacks additionally
// write dynamic call_<provider_status> entries.
const (
	EventCallInitiated      = "call_initiated"
	EventCallAnswered       = "call_answered"
	EventRecordingCompleted = "recording_completed"
)

// CallLog is an append-only audit entry for one pipeline event. Rows are
// never mutated; insertion order is the only ordering guarantee.
type CallLog struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey"`
	CallID    string    `json:"call_id" gorm:"column:call_id;index"`
	EventType string    `json:"event_type" gorm:"column:event_type"`
	EventData JSONB     `json:"event_data" gorm:"column:event_data;type:jsonb"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (CallLog) TableName() string {
	return "call_logs"
}
