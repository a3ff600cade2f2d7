package model

import "time"

// Enrollment links a student to a course. The composite primary key
// makes the (student, course) pair unique at the storage level, which
// backstops the orchestrator's duplicate check.
type Enrollment struct {
	StudentID int64     `gorm:"primaryKey;autoIncrement:false"`
	CourseID  int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Student Student `gorm:"constraint:OnDelete:CASCADE"`
	Course  Course  `gorm:"constraint:OnDelete:CASCADE"`
}
