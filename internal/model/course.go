package model

import "time"

// Course represents a college course with its weekly timetable.
type Course struct {
	ID        int64  `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;size:32;not null"`
	Name      string `gorm:"size:256;not null"`
	Credits   int    `gorm:"not null"`
	CollegeID int64  `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	College   College    `gorm:"constraint:OnDelete:CASCADE"`
	TimeSlots []TimeSlot `gorm:"foreignKey:CourseID"`
}
