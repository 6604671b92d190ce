package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/domain"
	"gorm.io/gorm"
)

// GormLovedOneRepository implements LovedOneRepository using GORM
type GormLovedOneRepository struct {
	db *gorm.DB
}

// NewGormLovedOneRepository creates a new GORM loved one repository
func NewGormLovedOneRepository(db *gorm.DB) *GormLovedOneRepository {
	return &GormLovedOneRepository{db: db}
}

// Create creates a new loved one
func (r *GormLovedOneRepository) Create(ctx context.Context, lovedOne *domain.LovedOne) error {
	if lovedOne.ID == "" {
		lovedOne.ID = uuid.New().String()
	}
	if lovedOne.Status == "" {
		lovedOne.Status = "active"
	}
	now := time.Now()
	if lovedOne.CreatedAt.IsZero() {
		lovedOne.CreatedAt = now
	}
	lovedOne.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(lovedOne).Error; err != nil {
		return fmt.Errorf("failed to create loved one: %w", err)
	}
	return nil
}

// GetByID retrieves a loved one by ID
func (r *GormLovedOneRepository) GetByID(ctx context.Context, id string) (*domain.LovedOne, error) {
	var lovedOne domain.LovedOne
	if err := r.db.WithContext(ctx).First(&lovedOne, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("loved one %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loved one: %w", err)
	}
	return &lovedOne, nil
}

// ListByUser retrieves all loved ones for a user
func (r *GormLovedOneRepository) ListByUser(ctx context.Context, userID string) ([]*domain.LovedOne, error) {
	var lovedOnes []*domain.LovedOne
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&lovedOnes).Error; err != nil {
		return nil, fmt.Errorf("failed to list loved ones: %w", err)
	}
	return lovedOnes, nil
}

// Update saves changes to a loved one
func (r *GormLovedOneRepository) Update(ctx context.Context, lovedOne *domain.LovedOne) error {
	lovedOne.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(lovedOne).Error; err != nil {
		return fmt.Errorf("failed to update loved one: %w", err)
	}
	return nil
}

// SetProfileImage stores the object path of one of the two profile image slots
func (r *GormLovedOneRepository) SetProfileImage(ctx context.Context, id string, slot int, storagePath string) error {
	if slot != 1 && slot != 2 {
		return fmt.Errorf("profile image slot must be 1 or 2, got %d", slot)
	}
	column := fmt.Sprintf("profile_image_%d", slot)

	result := r.db.WithContext(ctx).Model(&domain.LovedOne{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       storagePath,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set profile image: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("loved one %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a loved one and cascades its scheduled calls, question
// bindings and call logs. Recordings are user-owned and stay.
func (r *GormLovedOneRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var callIDs []string
		if err := tx.Model(&domain.ScheduledCall{}).Where("loved_one_id = ?", id).Pluck("id", &callIDs).Error; err != nil {
			return fmt.Errorf("failed to list calls for cascade: %w", err)
		}

		if len(callIDs) > 0 {
			if err := tx.Where("call_id IN ?", callIDs).Delete(&domain.CallQuestion{}).Error; err != nil {
				return fmt.Errorf("failed to cascade call questions: %w", err)
			}
			if err := tx.Where("call_id IN ?", callIDs).Delete(&domain.CallLog{}).Error; err != nil {
				return fmt.Errorf("failed to cascade call logs: %w", err)
			}
			if err := tx.Where("loved_one_id = ?", id).Delete(&domain.ScheduledCall{}).Error; err != nil {
				return fmt.Errorf("failed to cascade scheduled calls: %w", err)
			}
		}

		result := tx.Delete(&domain.LovedOne{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete loved one: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("loved one %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
