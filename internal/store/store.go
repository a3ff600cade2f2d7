package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-enroll-backend/internal/model"
	"course-enroll-backend/internal/schedule"
)

// Store defines the interface for all database operations.
type Store interface {
	// Enroll atomically enrolls a student in a batch of courses after
	// running the membership, conflict, and duplicate guards.
	Enroll(ctx context.Context, studentID int64, courseIDs []int64) ([]EnrollmentResult, error)
	// DropCourse removes one enrollment.
	DropCourse(ctx context.Context, studentID, courseID int64) error
	// AvailableCourses lists the courses of the student's college the
	// student is not yet enrolled in.
	AvailableCourses(ctx context.Context, studentID int64) ([]CourseInfo, error)
	// EnrolledCourses lists the student's current enrollments.
	EnrolledCourses(ctx context.Context, studentID int64) ([]CourseInfo, error)

	// AddTimeSlot persists a new slot after checking it against every
	// enrolled student's schedule.
	AddTimeSlot(ctx context.Context, courseID int64, day time.Weekday, startSec, endSec int) (*SlotInfo, error)
	// UpdateTimeSlot applies a partial update under the same guard.
	UpdateTimeSlot(ctx context.Context, slotID int64, upd TimeSlotUpdate) (*SlotInfo, error)
	// DeleteTimeSlot removes a slot without any conflict check and
	// returns the ID of the course it belonged to.
	DeleteTimeSlot(ctx context.Context, slotID int64) (int64, error)
	// CourseTimetable lists a course's slots.
	CourseTimetable(ctx context.Context, courseID int64) ([]SlotInfo, error)
	// EnrolledStudents lists the students enrolled in a course.
	EnrolledStudents(ctx context.Context, courseID int64) ([]StudentInfo, error)

	// DB exposes the underlying handle for simple reads and middleware.
	DB() *gorm.DB
}

// EnrollmentResult describes one newly created enrollment.
type EnrollmentResult struct {
	CourseID   int64     `json:"course_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// CourseInfo is the read-model for a course with its timetable.
type CourseInfo struct {
	ID      int64      `json:"id"`
	Code    string     `json:"code"`
	Name    string     `json:"name"`
	Credits int        `json:"credits"`
	Slots   []SlotInfo `json:"timeslots"`
}

// SlotInfo is the wire representation of a time slot: English weekday
// name and HH:MM:SS clock strings.
type SlotInfo struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"course_id"`
	Weekday  string `json:"weekday"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// StudentInfo is the read-model for an enrolled student.
type StudentInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TimeSlotUpdate carries the optional fields of a partial slot update.
type TimeSlotUpdate struct {
	Weekday  *time.Weekday
	StartSec *int
	EndSec   *int
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, logger *zap.Logger) Store {
	return &gormStore{db: db, logger: logger}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// slotRow is the flat scan target for timetable queries joined with the
// owning course (and, where relevant, the enrolled student).
type slotRow struct {
	ID        int64
	CourseID  int64
	StudentID int64
	Code      string
	Weekday   int
	StartSec  int
	EndSec    int
}

func (r slotRow) toSlot() schedule.Slot {
	return schedule.Slot{
		Label: r.Code,
		Day:   time.Weekday(r.Weekday),
		Start: r.StartSec,
		End:   r.EndSec,
	}
}

func slotInfo(slot *model.TimeSlot) *SlotInfo {
	return &SlotInfo{
		ID:       slot.ID,
		CourseID: slot.CourseID,
		Weekday:  time.Weekday(slot.Weekday).String(),
		Start:    schedule.FormatClock(slot.StartSec),
		End:      schedule.FormatClock(slot.EndSec),
	}
}

// dedupeIDs removes duplicates while preserving first-seen order.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// missingIDs returns the requested identifiers that did not resolve,
// sorted for stable error messages.
func missingIDs(requested []int64, resolved map[int64]model.Course) []int64 {
	var missing []int64
	for _, id := range requested {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func formatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%d", id)
	}
	return out
}

func joinIDs(ids []int64) string {
	return strings.Join(formatIDs(ids), ", ")
}
