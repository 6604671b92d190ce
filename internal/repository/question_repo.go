package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedahq/veda-call-service/internal/domain"
	"gorm.io/gorm"
)

// defaultQuestions is the global question bank seeded on first migration.
var defaultQuestions = []domain.Question{
	{QuestionText: "What is your earliest childhood memory?", Category: "childhood"},
	{QuestionText: "What was your neighborhood like growing up?", Category: "childhood"},
	{QuestionText: "How did you meet your spouse or partner?", Category: "relationships"},
	{QuestionText: "What advice would you give your younger self?", Category: "wisdom"},
	{QuestionText: "What accomplishment are you most proud of?", Category: "life"},
	{QuestionText: "What was your first job like?", Category: "work"},
	{QuestionText: "What family traditions do you remember most fondly?", Category: "family"},
	{QuestionText: "What song always takes you back in time?", Category: "favorites"},
}

// GormQuestionRepository implements QuestionRepository using GORM
type GormQuestionRepository struct {
	db *gorm.DB
}

// NewGormQuestionRepository creates a new GORM question repository
func NewGormQuestionRepository(db *gorm.DB) *GormQuestionRepository {
	return &GormQuestionRepository{db: db}
}

// List retrieves the question bank, optionally filtered by category
func (r *GormQuestionRepository) List(ctx context.Context, category string) ([]*domain.Question, error) {
	var questions []*domain.Question
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Order("created_at ASC").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// GetByIDs retrieves questions by their ids
func (r *GormQuestionRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []*domain.Question
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

// SeedDefaults inserts the default question bank when the table is empty
func (r *GormQuestionRepository) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Question{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	for _, q := range defaultQuestions {
		row := q
		row.ID = uuid.New().String()
		row.CreatedAt = now
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to seed question: %w", err)
		}
	}
	return nil
}
