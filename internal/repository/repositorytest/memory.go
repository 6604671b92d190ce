// Package repositorytest provides an in-memory RepositoryManager used by
// service, scheduler and handler tests.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/domain"
	"github.com/vedahq/veda-call-service/internal/repository"
)

// MemoryManager implements repository.RepositoryManager with maps.
type MemoryManager struct {
	mu sync.Mutex

	calls         map[string]*domain.ScheduledCall
	lovedOnes     map[string]*domain.LovedOne
	questions     map[string]*domain.Question
	callQuestions []*domain.CallQuestion
	recordings    map[string]*domain.Recording
	logs          []*domain.CallLog

	scheduledCallRepo *memScheduledCallRepo
	lovedOneRepo      *memLovedOneRepo
	questionRepo      *memQuestionRepo
	recordingRepo     *memRecordingRepo
	callLogRepo       *memCallLogRepo
}

// NewMemoryManager creates an empty in-memory repository manager.
func NewMemoryManager() *MemoryManager {
	m := &MemoryManager{
		calls:      make(map[string]*domain.ScheduledCall),
		lovedOnes:  make(map[string]*domain.LovedOne),
		questions:  make(map[string]*domain.Question),
		recordings: make(map[string]*domain.Recording),
	}
	m.scheduledCallRepo = &memScheduledCallRepo{m: m}
	m.lovedOneRepo = &memLovedOneRepo{m: m}
	m.questionRepo = &memQuestionRepo{m: m}
	m.recordingRepo = &memRecordingRepo{m: m}
	m.callLogRepo = &memCallLogRepo{m: m}
	return m
}

func (m *MemoryManager) ScheduledCall() repository.ScheduledCallRepository { return m.scheduledCallRepo }
func (m *MemoryManager) LovedOne() repository.LovedOneRepository           { return m.lovedOneRepo }
func (m *MemoryManager) Question() repository.QuestionRepository           { return m.questionRepo }
func (m *MemoryManager) Recording() repository.RecordingRepository         { return m.recordingRepo }
func (m *MemoryManager) CallLog() repository.CallLogRepository             { return m.callLogRepo }
func (m *MemoryManager) Ping(ctx context.Context) error                    { return nil }
func (m *MemoryManager) Close() error                                      { return nil }

// SeedLovedOne inserts a loved one directly.
func (m *MemoryManager) SeedLovedOne(lovedOne *domain.LovedOne) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lovedOne.ID == "" {
		lovedOne.ID = uuid.New().String()
	}
	copied := *lovedOne
	m.lovedOnes[lovedOne.ID] = &copied
}

// SeedCall inserts a scheduled call directly.
func (m *MemoryManager) SeedCall(call *domain.ScheduledCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	copied := *call
	m.calls[call.ID] = &copied
}

// SeedQuestion inserts a question directly.
func (m *MemoryManager) SeedQuestion(q *domain.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	copied := *q
	m.questions[q.ID] = &copied
}

// BindQuestion binds a question to a call at the given order.
func (m *MemoryManager) BindQuestion(callID, questionID string, order int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callQuestions = append(m.callQuestions, &domain.CallQuestion{
		ID:            uuid.New().String(),
		CallID:        callID,
		QuestionID:    questionID,
		QuestionOrder: order,
	})
}

// Call returns a copy of a stored call.
func (m *MemoryManager) Call(id string) *domain.ScheduledCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call, ok := m.calls[id]; ok {
		copied := *call
		return &copied
	}
	return nil
}

// Recordings returns all stored recordings.
func (m *MemoryManager) Recordings() []*domain.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Recording, 0, len(m.recordings))
	for _, rec := range m.recordings {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}

// Logs returns all audit entries for a call in insertion order.
func (m *MemoryManager) Logs(callID string) []*domain.CallLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.CallLog
	for _, entry := range m.logs {
		if entry.CallID == callID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out
}

type memScheduledCallRepo struct {
	m *MemoryManager
}

func (r *memScheduledCallRepo) Create(ctx context.Context, call *domain.ScheduledCall, questionIDs []string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.CallStatus == "" {
		call.CallStatus = domain.CallStatusScheduled
	}
	if call.MaxRetries == 0 {
		call.MaxRetries = 3
	}
	copied := *call
	r.m.calls[call.ID] = &copied
	for i, questionID := range questionIDs {
		r.m.callQuestions = append(r.m.callQuestions, &domain.CallQuestion{
			ID:            uuid.New().String(),
			CallID:        call.ID,
			QuestionID:    questionID,
			QuestionOrder: i + 1,
		})
	}
	return nil
}

func (r *memScheduledCallRepo) GetByID(ctx context.Context, id string) (*domain.ScheduledCall, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok {
		return nil, fmt.Errorf("scheduled call %s: %w", id, repository.ErrNotFound)
	}
	copied := *call
	return &copied, nil
}

func (r *memScheduledCallRepo) GetByCallSID(ctx context.Context, callSID string) (*domain.ScheduledCall, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, call := range r.m.calls {
		if call.CallSID == callSID {
			copied := *call
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("scheduled call with sid %s: %w", callSID, repository.ErrNotFound)
}

func (r *memScheduledCallRepo) GetContext(ctx context.Context, id string) (*domain.CallContext, error) {
	call, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lovedOne, ok := r.m.lovedOnes[call.LovedOneID]
	if !ok {
		return nil, fmt.Errorf("loved one %s: %w", call.LovedOneID, repository.ErrNotFound)
	}

	var bindings []*domain.CallQuestion
	for _, b := range r.m.callQuestions {
		if b.CallID == id {
			bindings = append(bindings, b)
		}
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].QuestionOrder < bindings[j].QuestionOrder })

	var questions []domain.Question
	for _, b := range bindings {
		if q, ok := r.m.questions[b.QuestionID]; ok {
			questions = append(questions, *q)
		}
	}

	return &domain.CallContext{Call: *call, LovedOne: *lovedOne, Questions: questions}, nil
}

func (r *memScheduledCallRepo) ListByUser(ctx context.Context, userID string) ([]*domain.ScheduledCall, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.ScheduledCall
	for _, call := range r.m.calls {
		if call.UserID == userID {
			copied := *call
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.After(out[j].ScheduledDate) })
	return out, nil
}

func (r *memScheduledCallRepo) FindDue(ctx context.Context, now time.Time, window time.Duration) ([]*domain.ScheduledCall, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var due []*domain.ScheduledCall
	for _, call := range r.m.calls {
		if call.CallStatus != domain.CallStatusScheduled {
			continue
		}
		if call.RetryCount >= call.MaxRetries {
			continue
		}
		if call.ScheduledDate.Before(now.Add(-window)) || call.ScheduledDate.After(now.Add(window)) {
			continue
		}
		copied := *call
		due = append(due, &copied)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledDate.Before(due[j].ScheduledDate) })
	return due, nil
}

func (r *memScheduledCallRepo) ClaimForInitiation(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok || call.CallStatus != domain.CallStatusScheduled {
		return false, nil
	}
	call.CallStatus = domain.CallStatusInitiating
	call.CallStartedAt = &startedAt
	return true, nil
}

func (r *memScheduledCallRepo) SetDispatched(ctx context.Context, id string, callSID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok {
		return fmt.Errorf("scheduled call %s: %w", id, repository.ErrNotFound)
	}
	call.CallSID = callSID
	call.CallStatus = domain.CallStatusRinging
	return nil
}

func (r *memScheduledCallRepo) MarkAnswered(ctx context.Context, id string, answeredAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok {
		return fmt.Errorf("scheduled call %s: %w", id, repository.ErrNotFound)
	}
	call.CallStatus = domain.CallStatusInProgress
	call.CallAnsweredAt = &answeredAt
	return nil
}

func (r *memScheduledCallRepo) ApplyProviderStatus(ctx context.Context, callSID string, status domain.CallStatus) (*domain.ScheduledCall, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, call := range r.m.calls {
		if call.CallSID != callSID {
			continue
		}
		if !domain.CanTransition(call.CallStatus, status) {
			copied := *call
			return &copied, false, nil
		}
		call.CallStatus = status
		copied := *call
		return &copied, true, nil
	}
	return nil, false, nil
}

func (r *memScheduledCallRepo) Complete(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok {
		return fmt.Errorf("scheduled call %s: %w", id, repository.ErrNotFound)
	}
	call.CallStatus = domain.CallStatusCompleted
	call.CallEndedAt = &endedAt
	call.ActualDurationSeconds = durationSeconds
	return nil
}

func (r *memScheduledCallRepo) IncrementRetry(ctx context.Context, id string, reason string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok {
		return fmt.Errorf("scheduled call %s: %w", id, repository.ErrNotFound)
	}
	call.RetryCount++
	call.FailureReason = reason
	return nil
}

func (r *memScheduledCallRepo) Cancel(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	call, ok := r.m.calls[id]
	if !ok || call.CallStatus != domain.CallStatusScheduled {
		return fmt.Errorf("scheduled call %s not cancellable: %w", id, repository.ErrNotFound)
	}
	call.CallStatus = domain.CallStatusCancelled
	return nil
}

func (r *memScheduledCallRepo) FailStuckInitiating(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var swept int64
	for _, call := range r.m.calls {
		if call.CallStatus == domain.CallStatusInitiating && call.CallStartedAt != nil && call.CallStartedAt.Before(cutoff) {
			call.CallStatus = domain.CallStatusFailed
			call.FailureReason = reason
			swept++
		}
	}
	return swept, nil
}

type memLovedOneRepo struct {
	m *MemoryManager
}

func (r *memLovedOneRepo) Create(ctx context.Context, lovedOne *domain.LovedOne) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if lovedOne.ID == "" {
		lovedOne.ID = uuid.New().String()
	}
	if lovedOne.Status == "" {
		lovedOne.Status = "active"
	}
	copied := *lovedOne
	r.m.lovedOnes[lovedOne.ID] = &copied
	return nil
}

func (r *memLovedOneRepo) GetByID(ctx context.Context, id string) (*domain.LovedOne, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lovedOne, ok := r.m.lovedOnes[id]
	if !ok {
		return nil, fmt.Errorf("loved one %s: %w", id, repository.ErrNotFound)
	}
	copied := *lovedOne
	return &copied, nil
}

func (r *memLovedOneRepo) ListByUser(ctx context.Context, userID string) ([]*domain.LovedOne, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.LovedOne
	for _, lovedOne := range r.m.lovedOnes {
		if lovedOne.UserID == userID {
			copied := *lovedOne
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memLovedOneRepo) Update(ctx context.Context, lovedOne *domain.LovedOne) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.lovedOnes[lovedOne.ID]; !ok {
		return fmt.Errorf("loved one %s: %w", lovedOne.ID, repository.ErrNotFound)
	}
	copied := *lovedOne
	r.m.lovedOnes[lovedOne.ID] = &copied
	return nil
}

func (r *memLovedOneRepo) SetProfileImage(ctx context.Context, id string, slot int, storagePath string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	lovedOne, ok := r.m.lovedOnes[id]
	if !ok {
		return fmt.Errorf("loved one %s: %w", id, repository.ErrNotFound)
	}
	switch slot {
	case 1:
		lovedOne.ProfileImage1 = storagePath
	case 2:
		lovedOne.ProfileImage2 = storagePath
	default:
		return fmt.Errorf("profile image slot must be 1 or 2, got %d", slot)
	}
	return nil
}

func (r *memLovedOneRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.lovedOnes[id]; !ok {
		return fmt.Errorf("loved one %s: %w", id, repository.ErrNotFound)
	}
	delete(r.m.lovedOnes, id)
	for callID, call := range r.m.calls {
		if call.LovedOneID == id {
			delete(r.m.calls, callID)
		}
	}
	return nil
}

type memQuestionRepo struct {
	m *MemoryManager
}

func (r *memQuestionRepo) List(ctx context.Context, category string) ([]*domain.Question, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Question
	for _, q := range r.m.questions {
		if category != "" && q.Category != category {
			continue
		}
		copied := *q
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memQuestionRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.Question, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Question
	for _, id := range ids {
		if q, ok := r.m.questions[id]; ok {
			copied := *q
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memQuestionRepo) SeedDefaults(ctx context.Context) error {
	return nil
}

type memRecordingRepo struct {
	m *MemoryManager
}

func (r *memRecordingRepo) Create(ctx context.Context, recording *domain.Recording) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if recording.ID == "" {
		recording.ID = uuid.New().String()
	}
	copied := *recording
	r.m.recordings[recording.ID] = &copied
	return nil
}

func (r *memRecordingRepo) GetByID(ctx context.Context, id string) (*domain.Recording, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	recording, ok := r.m.recordings[id]
	if !ok {
		return nil, fmt.Errorf("recording %s: %w", id, repository.ErrNotFound)
	}
	copied := *recording
	return &copied, nil
}

func (r *memRecordingRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Recording, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Recording
	for _, recording := range r.m.recordings {
		if recording.UserID == userID {
			copied := *recording
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memCallLogRepo struct {
	m *MemoryManager
}

func (r *memCallLogRepo) Append(ctx context.Context, callID string, eventType string, eventData domain.JSONB) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.logs = append(r.m.logs, &domain.CallLog{
		ID:        uuid.New().String(),
		CallID:    callID,
		EventType: eventType,
		EventData: eventData,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *memCallLogRepo) ListByCall(ctx context.Context, callID string) ([]*domain.CallLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.CallLog
	for _, entry := range r.m.logs {
		if entry.CallID == callID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}
