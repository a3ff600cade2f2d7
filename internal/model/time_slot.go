package model

import "time"

// TimeSlot is one weekly meeting of a course: a half-open interval
// [StartSec, EndSec) of seconds since midnight on a fixed weekday.
// Weekday follows time.Weekday numbering (0 = Sunday).
type TimeSlot struct {
	ID        int64 `gorm:"primaryKey"`
	CourseID  int64 `gorm:"index;not null"`
	Weekday   int   `gorm:"not null"`
	StartSec  int   `gorm:"not null"`
	EndSec    int   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Course Course `gorm:"constraint:OnDelete:CASCADE"`
}
