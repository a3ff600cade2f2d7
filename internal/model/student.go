package model

import "time"

// Student belongs to exactly one college for the lifetime of the record.
type Student struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:256;not null"`
	CollegeID int64  `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	College College `gorm:"constraint:OnDelete:CASCADE"`
}
