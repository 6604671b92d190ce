package domain

import (
	"time"
)

// LovedOne is a person to be called. Owned by exactly one user; phone is
// stored in E.164 form and passed to the telephony provider untouched.
type LovedOne struct {
	ID               string      `json:"id" gorm:"column:id;primaryKey"`
	UserID           string      `json:"user_id" gorm:"column:user_id;index"`
	Name             string      `json:"name" gorm:"column:name"`
	Relationship     string      `json:"relationship" gorm:"column:relationship"`
	Age              *int        `json:"age" gorm:"column:age"`
	Phone            string      `json:"phone" gorm:"column:phone"`
	Notes            string      `json:"notes" gorm:"column:notes"`
	ProfileImage1    string      `json:"profile_image_1" gorm:"column:profile_image_1"`
	ProfileImage2    string      `json:"profile_image_2" gorm:"column:profile_image_2"`
	FavoriteThings   StringArray `json:"favorite_things" gorm:"column:favorite_things;type:jsonb"`
	PersonalityNotes string      `json:"personality_notes" gorm:"column:personality_notes"`
	Status           string      `json:"status" gorm:"column:status"`
	CreatedAt        time.Time   `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time   `json:"updated_at" gorm:"column:updated_at"`
}

func (LovedOne) TableName() string {
	return "loved_ones"
}
