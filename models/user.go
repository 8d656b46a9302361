package models

import "time"

// User owns generated articles and unlocks the higher rate-limit tier.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"createdAt"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
}

// TableName pins the table name.
func (User) TableName() string {
	return "users"
}
