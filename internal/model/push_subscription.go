package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// A subscription is attached to the courses whose timetable changes the
// client wants to hear about.
type PushSubscription struct {
	Endpoint  string `gorm:"primaryKey"`
	P256DH    string `gorm:"column:p256dh;not null"`
	Auth      string `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Courses []*Course `gorm:"many2many:subscription_course_mapping;"`
}
