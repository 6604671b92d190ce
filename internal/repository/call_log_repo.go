package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/domain"
	"gorm.io/gorm"
)

// GormCallLogRepository implements CallLogRepository using GORM
type GormCallLogRepository struct {
	db *gorm.DB
}

// NewGormCallLogRepository creates a new GORM call log repository
func NewGormCallLogRepository(db *gorm.DB) *GormCallLogRepository {
	return &GormCallLogRepository{db: db}
}

// Append inserts one audit entry. The table is append-only.
func (r *GormCallLogRepository) Append(ctx context.Context, callID string, eventType string, eventData domain.JSONB) error {
	entry := &domain.CallLog{
		ID:        uuid.New().String(),
		CallID:    callID,
		EventType: eventType,
		EventData: eventData,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append call log: %w", err)
	}
	return nil
}

// ListByCall retrieves the audit trail for one call in insertion order
func (r *GormCallLogRepository) ListByCall(ctx context.Context, callID string) ([]*domain.CallLog, error) {
	var logs []*domain.CallLog
	if err := r.db.WithContext(ctx).Where("call_id = ?", callID).Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list call logs: %w", err)
	}
	return logs, nil
}
