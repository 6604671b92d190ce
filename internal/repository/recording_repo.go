package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/domain"
	"gorm.io/gorm"
)

// GormRecordingRepository implements RecordingRepository using GORM
type GormRecordingRepository struct {
	db *gorm.DB
}

// NewGormRecordingRepository creates a new GORM recording repository
func NewGormRecordingRepository(db *gorm.DB) *GormRecordingRepository {
	return &GormRecordingRepository{db: db}
}

// Create inserts a recording row. Recordings are immutable after creation.
func (r *GormRecordingRepository) Create(ctx context.Context, recording *domain.Recording) error {
	if recording.ID == "" {
		recording.ID = uuid.New().String()
	}
	if recording.CreatedAt.IsZero() {
		recording.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(recording).Error; err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	return nil
}

// GetByID retrieves a recording by ID
func (r *GormRecordingRepository) GetByID(ctx context.Context, id string) (*domain.Recording, error) {
	var recording domain.Recording
	if err := r.db.WithContext(ctx).First(&recording, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return &recording, nil
}

// ListByUser retrieves all recordings for a user, newest first
func (r *GormRecordingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Recording, error) {
	var recordings []*domain.Recording
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&recordings).Error; err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	return recordings, nil
}
