package model

import "time"

// College represents an institution that owns students and courses.
type College struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:128;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Students []Student `gorm:"foreignKey:CollegeID"`
	Courses  []Course  `gorm:"foreignKey:CollegeID"`
}
