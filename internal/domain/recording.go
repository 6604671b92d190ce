package domain

import (
	"time"
)

// ProcessingStatus values for a recording artifact
const (
	RecordingProcessingCompleted = "completed"
)

// Recording is one archived audio artifact for a completed call. Created
// once by the recording callback and immutable thereafter.
type Recording struct {
	ID               string    `json:"id" gorm:"column:id;primaryKey"`
	UserID           string    `json:"user_id" gorm:"column:user_id;index"`
	LovedOneID       string    `json:"loved_one_id" gorm:"column:loved_one_id;index"`
	CallID           string    `json:"call_id" gorm:"column:call_id;index"`
	Title            string    `json:"title" gorm:"column:title"`
	Description      string    `json:"description" gorm:"column:description"`
	RecordingSID     string    `json:"recording_sid" gorm:"column:recording_sid;index"`
	RecordingURL     string    `json:"recording_url" gorm:"column:recording_url"`
	StoragePath      string    `json:"storage_path" gorm:"column:storage_path"`
	DurationSeconds  int       `json:"duration_seconds" gorm:"column:duration_seconds"`
	FileSizeBytes    int64     `json:"file_size_bytes" gorm:"column:file_size_bytes"`
	Format           string    `json:"format" gorm:"column:format"`
	ProcessingStatus string    `json:"processing_status" gorm:"column:processing_status"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Recording) TableName() string {
	return "recordings"
}
