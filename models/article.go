package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article is a generated research write-up. Only the orchestrator creates
// rows; afterwards only the archive flag and the signed media URLs change.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`

	Topic   string `json:"topic" gorm:"type:text"`
	Length  string `json:"length,omitempty"`
	Title   string `json:"title" gorm:"type:text;not null"`
	Content string `json:"content" gorm:"type:text;not null"`
	Summary string `json:"summary" gorm:"type:text;not null"`

	// Media pointers are nil when the matching stage failed.
	ImageURL          *string    `json:"imageUrl" gorm:"type:text"`
	ImageKey          string     `json:"-"`
	ImageURLExpiresAt *time.Time `json:"imageUrlExpiresAt,omitempty" gorm:"index"`
	AudioURL          *string    `json:"audioUrl" gorm:"type:text"`
	AudioKey          string     `json:"-"`
	AudioURLExpiresAt *time.Time `json:"audioUrlExpiresAt,omitempty" gorm:"index"`

	Archived bool `json:"archived" gorm:"not null;default:false;index"`

	UserID *uint `json:"userId,omitempty" gorm:"index"`
	User   *User `json:"-" gorm:"constraint:OnDelete:SET NULL"`

	// Generation records provider models and the reasons optional stages failed.
	Generation datatypes.JSONMap `json:"generation,omitempty"`
}

// TableName pins the table name.
func (Article) TableName() string {
	return "articles"
}
