package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vedahq/veda-call-service/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// ScheduledCallRepository defines the operations the pipeline and the
// dashboard need on scheduled_calls.
type ScheduledCallRepository interface {
	// Create persists a call together with its ordered question bindings.
	Create(ctx context.Context, call *domain.ScheduledCall, questionIDs []string) error

	GetByID(ctx context.Context, id string) (*domain.ScheduledCall, error)
	GetByCallSID(ctx context.Context, callSID string) (*domain.ScheduledCall, error)
	GetContext(ctx context.Context, id string) (*domain.CallContext, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.ScheduledCall, error)

	// FindDue selects scheduled calls inside [now-window, now+window]
	// whose retry_count has not reached max_retries.
	FindDue(ctx context.Context, now time.Time, window time.Duration) ([]*domain.ScheduledCall, error)

	// ClaimForInitiation transitions scheduled -> initiating and stamps
	// call_started_at. Returns false when the row was no longer in
	// scheduled, i.e. another poller pass already claimed it.
	ClaimForInitiation(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// SetDispatched records the provider call SID and moves the row to ringing.
	SetDispatched(ctx context.Context, id string, callSID string) error

	// MarkAnswered moves the row to in_progress and stamps call_answered_at.
	MarkAnswered(ctx context.Context, id string, answeredAt time.Time) error

	// ApplyProviderStatus updates the row matching callSID subject to the
	// transition guard. The bool result reports whether a row was updated;
	// a missing SID is not an error.
	ApplyProviderStatus(ctx context.Context, callSID string, status domain.CallStatus) (*domain.ScheduledCall, bool, error)

	// Complete finishes a call with its end timestamp and actual duration.
	Complete(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error

	IncrementRetry(ctx context.Context, id string, reason string) error
	Cancel(ctx context.Context, id string) error

	// FailStuckInitiating fails rows sitting in initiating since before
	// cutoff and returns how many rows were swept.
	FailStuckInitiating(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// LovedOneRepository defines contact operations for the dashboard.
type LovedOneRepository interface {
	Create(ctx context.Context, lovedOne *domain.LovedOne) error
	GetByID(ctx context.Context, id string) (*domain.LovedOne, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.LovedOne, error)
	Update(ctx context.Context, lovedOne *domain.LovedOne) error
	SetProfileImage(ctx context.Context, id string, slot int, storagePath string) error
	// Delete removes the contact and cascades its scheduled calls,
	// call questions and call logs. Recordings stay with the user.
	Delete(ctx context.Context, id string) error
}

// QuestionRepository defines question bank operations.
type QuestionRepository interface {
	List(ctx context.Context, category string) ([]*domain.Question, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Question, error)
	SeedDefaults(ctx context.Context) error
}

// RecordingRepository defines recording archive operations.
type RecordingRepository interface {
	Create(ctx context.Context, recording *domain.Recording) error
	GetByID(ctx context.Context, id string) (*domain.Recording, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Recording, error)
}

// CallLogRepository appends and reads the audit trail.
type CallLogRepository interface {
	Append(ctx context.Context, callID string, eventType string, eventData domain.JSONB) error
	ListByCall(ctx context.Context, callID string) ([]*domain.CallLog, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	ScheduledCall() ScheduledCallRepository
	LovedOne() LovedOneRepository
	Question() QuestionRepository
	Recording() RecordingRepository
	CallLog() CallLogRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db                *gorm.DB
	scheduledCallRepo *GormScheduledCallRepository
	lovedOneRepo      *GormLovedOneRepository
	questionRepo      *GormQuestionRepository
	recordingRepo     *GormRecordingRepository
	callLogRepo       *GormCallLogRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:                db,
		scheduledCallRepo: NewGormScheduledCallRepository(db),
		lovedOneRepo:      NewGormLovedOneRepository(db),
		questionRepo:      NewGormQuestionRepository(db),
		recordingRepo:     NewGormRecordingRepository(db),
		callLogRepo:       NewGormCallLogRepository(db),
	}
}

// ScheduledCall returns the scheduled call repository
func (m *GormRepositoryManager) ScheduledCall() ScheduledCallRepository {
	return m.scheduledCallRepo
}

// LovedOne returns the loved one repository
func (m *GormRepositoryManager) LovedOne() LovedOneRepository {
	return m.lovedOneRepo
}

// Question returns the question repository
func (m *GormRepositoryManager) Question() QuestionRepository {
	return m.questionRepo
}

// Recording returns the recording repository
func (m *GormRepositoryManager) Recording() RecordingRepository {
	return m.recordingRepo
}

// CallLog returns the call log repository
func (m *GormRepositoryManager) CallLog() CallLogRepository {
	return m.callLogRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
