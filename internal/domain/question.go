package domain

import (
	"time"
)

// Question is a reusable prompt template from the global question bank.
type Question struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey"`
	QuestionText string    `json:"question_text" gorm:"column:question_text"`
	Category     string    `json:"category" gorm:"column:category;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Question) TableName() string {
	return "questions"
}

// CallQuestion binds a question to a scheduled call with an explicit order.
type CallQuestion struct {
	ID            string    `json:"id" gorm:"column:id;primaryKey"`
	CallID        string    `json:"call_id" gorm:"column:call_id;index"`
	QuestionID    string    `json:"question_id" gorm:"column:question_id"`
	QuestionOrder int       `json:"question_order" gorm:"column:question_order"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
}

func (CallQuestion) TableName() string {
	return "call_questions"
}
