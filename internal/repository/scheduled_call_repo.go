package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/domain"
	"gorm.io/gorm"
)

// GormScheduledCallRepository implements ScheduledCallRepository using GORM
type GormScheduledCallRepository struct {
	db *gorm.DB
}

// NewGormScheduledCallRepository creates a new GORM scheduled call repository
func NewGormScheduledCallRepository(db *gorm.DB) *GormScheduledCallRepository {
	return &GormScheduledCallRepository{db: db}
}

// Create persists a call and its ordered question bindings in one transaction.
func (r *GormScheduledCallRepository) Create(ctx context.Context, call *domain.ScheduledCall, questionIDs []string) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.CallStatus == "" {
		call.CallStatus = domain.CallStatusScheduled
	}
	if call.MaxRetries == 0 {
		call.MaxRetries = 3
	}
	now := time.Now()
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	call.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(call).Error; err != nil {
			return fmt.Errorf("failed to create scheduled call: %w", err)
		}
		for i, questionID := range questionIDs {
			cq := &domain.CallQuestion{
				ID:            uuid.New().String(),
				CallID:        call.ID,
				QuestionID:    questionID,
				QuestionOrder: i + 1,
				CreatedAt:     now,
			}
			if err := tx.Create(cq).Error; err != nil {
				return fmt.Errorf("failed to bind question to call: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a scheduled call by ID
func (r *GormScheduledCallRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledCall, error) {
	var call domain.ScheduledCall
	if err := r.db.WithContext(ctx).First(&call, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("scheduled call %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scheduled call: %w", err)
	}

	return &call, nil
}

// GetByCallSID retrieves a scheduled call by its provider call SID
func (r *GormScheduledCallRepository) GetByCallSID(ctx context.Context, callSID string) (*domain.ScheduledCall, error) {
	var call domain.ScheduledCall
	if err := r.db.WithContext(ctx).First(&call, "call_sid = ?", callSID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("scheduled call with sid %s: %w", callSID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scheduled call by sid: %w", err)
	}

	return &call, nil
}

// GetContext loads a call with its loved one and the ordered question list.
func (r *GormScheduledCallRepository) GetContext(ctx context.Context, id string) (*domain.CallContext, error) {
	call, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var lovedOne domain.LovedOne
	if err := r.db.WithContext(ctx).First(&lovedOne, "id = ?", call.LovedOneID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("loved one %s: %w", call.LovedOneID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get loved one: %w", err)
	}

	var bindings []domain.CallQuestion
	if err := r.db.WithContext(ctx).Where("call_id = ?", id).Order("question_order ASC").Find(&bindings).Error; err != nil {
		return nil, fmt.Errorf("failed to get call questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(bindings))
	if len(bindings) > 0 {
		ids := make([]string, 0, len(bindings))
		for _, b := range bindings {
			ids = append(ids, b.QuestionID)
		}
		var rows []domain.Question
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to get questions: %w", err)
		}
		byID := make(map[string]domain.Question, len(rows))
		for _, q := range rows {
			byID[q.ID] = q
		}
		for _, b := range bindings {
			if q, ok := byID[b.QuestionID]; ok {
				questions = append(questions, q)
			}
		}
	}

	return &domain.CallContext{
		Call:      *call,
		LovedOne:  lovedOne,
		Questions: questions,
	}, nil
}

// ListByUser retrieves all scheduled calls for a user, newest first
func (r *GormScheduledCallRepository) ListByUser(ctx context.Context, userID string) ([]*domain.ScheduledCall, error) {
	var calls []*domain.ScheduledCall
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("scheduled_date DESC").Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("failed to list scheduled calls: %w", err)
	}
	return calls, nil
}

// FindDue selects dispatchable calls inside the window around now.
func (r *GormScheduledCallRepository) FindDue(ctx context.Context, now time.Time, window time.Duration) ([]*domain.ScheduledCall, error) {
	var calls []*domain.ScheduledCall
	err := r.db.WithContext(ctx).
		Where("call_status = ?", domain.CallStatusScheduled).
		Where("scheduled_date >= ?", now.Add(-window)).
		Where("scheduled_date <= ?", now.Add(window)).
		Where("retry_count < max_retries").
		Order("scheduled_date ASC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find due calls: %w", err)
	}
	return calls, nil
}

// ClaimForInitiation does the status-guarded claim: the update only applies
// while the row is still in scheduled, so a second poller pass that races
// this one touches zero rows and skips.
func (r *GormScheduledCallRepository) ClaimForInitiation(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ? AND call_status = ?", id, domain.CallStatusScheduled).
		Updates(map[string]interface{}{
			"call_status":     domain.CallStatusInitiating,
			"call_started_at": startedAt,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim call for initiation: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SetDispatched records the provider call SID and moves the row to ringing
func (r *GormScheduledCallRepository) SetDispatched(ctx context.Context, id string, callSID string) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"call_sid":    callSID,
			"call_status": domain.CallStatusRinging,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record dispatch: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("scheduled call %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAnswered moves the row to in_progress and stamps the answer time
func (r *GormScheduledCallRepository) MarkAnswered(ctx context.Context, id string, answeredAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"call_status":      domain.CallStatusInProgress,
			"call_answered_at": answeredAt,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark call answered: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("scheduled call %s: %w", id, ErrNotFound)
	}
	return nil
}

// ApplyProviderStatus updates the row matching callSID subject to the
// transition guard. A missing SID or a guarded-off transition is a no-op,
// not an error; provider callbacks can arrive before the SID is persisted
// and can arrive out of order.
func (r *GormScheduledCallRepository) ApplyProviderStatus(ctx context.Context, callSID string, status domain.CallStatus) (*domain.ScheduledCall, bool, error) {
	var call domain.ScheduledCall
	if err := r.db.WithContext(ctx).First(&call, "call_sid = ?", callSID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up call by sid: %w", err)
	}

	if !domain.CanTransition(call.CallStatus, status) {
		return &call, false, nil
	}

	// Guard on the status we read so a concurrent writer cannot be
	// overwritten with a stale transition.
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ? AND call_status = ?", call.ID, call.CallStatus).
		Updates(map[string]interface{}{
			"call_status": status,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to apply provider status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &call, false, nil
	}

	call.CallStatus = status
	return &call, true, nil
}

// Complete finishes a call with end timestamp and actual duration
func (r *GormScheduledCallRepository) Complete(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"call_status":             domain.CallStatusCompleted,
			"call_ended_at":           endedAt,
			"actual_duration_seconds": durationSeconds,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete call: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("scheduled call %s: %w", id, ErrNotFound)
	}
	return nil
}

// IncrementRetry bumps retry_count and records the dispatch failure reason
func (r *GormScheduledCallRepository) IncrementRetry(ctx context.Context, id string, reason string) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":    gorm.Expr("retry_count + 1"),
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment retry count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("scheduled call %s: %w", id, ErrNotFound)
	}
	return nil
}

// Cancel moves a still-pending call to cancelled. In-flight and finished
// calls are left alone.
func (r *GormScheduledCallRepository) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("id = ? AND call_status = ?", id, domain.CallStatusScheduled).
		Updates(map[string]interface{}{
			"call_status": domain.CallStatusCancelled,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to cancel call: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("scheduled call %s not cancellable: %w", id, ErrNotFound)
	}
	return nil
}

// FailStuckInitiating sweeps rows stuck in initiating since before cutoff
func (r *GormScheduledCallRepository) FailStuckInitiating(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.ScheduledCall{}).
		Where("call_status = ? AND call_started_at < ?", domain.CallStatusInitiating, cutoff).
		Updates(map[string]interface{}{
			"call_status":    domain.CallStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to sweep stuck calls: %w", result.Error)
	}
	return result.RowsAffected, nil
}
