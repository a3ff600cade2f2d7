package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-enroll-backend/internal/apperr"
	"course-enroll-backend/internal/model"
	"course-enroll-backend/internal/schedule"
)

// Enroll runs the guard sequence and the batch insert inside a single
// transaction. The student row and the requested course rows are locked
// for the duration, so concurrent enrollments touching the same student
// (or timetable mutations on the same courses) serialize instead of
// racing past the conflict checks.
func (s *gormStore) Enroll(ctx context.Context, studentID int64, courseIDs []int64) ([]EnrollmentResult, error) {
	ids := dedupeIDs(courseIDs)
	if len(ids) == 0 {
		return nil, apperr.InvalidInput("no courses requested")
	}

	var results []EnrollmentResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Check 1: the student must exist. Locking the row serializes
		// concurrent writers of this student's enrollment set.
		var student model.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&student, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("student %d not found", studentID)
			}
			return apperr.Storage(err)
		}

		// Check 2: every requested course must resolve.
		var courses []model.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Find(&courses, ids).Error; err != nil {
			return apperr.Storage(err)
		}
		byID := make(map[int64]model.Course, len(courses))
		for _, c := range courses {
			byID[c.ID] = c
		}
		if missing := missingIDs(ids, byID); len(missing) > 0 {
			return apperr.NotFound("courses not found: %s", joinIDs(missing)).
				WithEntities(formatIDs(missing)...)
		}

		// Check 3: all courses must belong to the student's college.
		var crossCodes []string
		for _, id := range ids {
			if c := byID[id]; c.CollegeID != student.CollegeID {
				crossCodes = append(crossCodes, c.Code)
			}
		}
		if len(crossCodes) > 0 {
			return apperr.PolicyViolation("courses outside the student's college: %s",
				strings.Join(crossCodes, ", ")).WithEntities(crossCodes...)
		}

		// Check 4: the requested courses must not conflict with each other.
		newSlots, err := requestedSlots(tx, ids)
		if err != nil {
			return apperr.Storage(err)
		}
		if c := schedule.FindConflict(newSlots); c != nil {
			return apperr.ScheduleConflict("requested courses conflict with each other on %s", c).
				WithEntities(c.Labels()...)
		}

		// Check 5: the combined schedule with already-enrolled courses
		// must stay conflict-free. Courses that appear in both sets are
		// left to the duplicate check below.
		existingSlots, err := enrolledSlots(tx, studentID, ids)
		if err != nil {
			return apperr.Storage(err)
		}
		if c := schedule.FindConflict(append(existingSlots, newSlots...)); c != nil {
			return apperr.ScheduleConflict("schedule conflicts with an enrolled course on %s", c).
				WithEntities(c.Labels()...)
		}

		// Check 6: no requested course may already be enrolled.
		var dupes []model.Enrollment
		if err := tx.Where("student_id = ? AND course_id IN ?", studentID, ids).
			Find(&dupes).Error; err != nil {
			return apperr.Storage(err)
		}
		if len(dupes) > 0 {
			dupeCodes := make([]string, len(dupes))
			for i, e := range dupes {
				dupeCodes[i] = byID[e.CourseID].Code
			}
			return apperr.AlreadyEnrolled("already enrolled in: %s",
				strings.Join(dupeCodes, ", ")).WithEntities(dupeCodes...)
		}

		// All guards passed: insert the batch as one unit.
		now := time.Now()
		rows := make([]model.Enrollment, len(ids))
		for i, id := range ids {
			rows[i] = model.Enrollment{StudentID: studentID, CourseID: id, CreatedAt: now}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperr.Storage(err)
		}

		results = make([]EnrollmentResult, len(ids))
		for i, id := range ids {
			c := byID[id]
			results[i] = EnrollmentResult{CourseID: c.ID, Code: c.Code, Name: c.Name, EnrolledAt: now}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("student enrolled",
		zap.Int64("student_id", studentID),
		zap.Int("courses", len(results)),
	)
	return results, nil
}

// DropCourse deletes one enrollment. Dropping a course the student is
// not enrolled in (including a second drop in a row) reports not found.
func (s *gormStore) DropCourse(ctx context.Context, studentID, courseID int64) error {
	res := s.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Delete(&model.Enrollment{})
	if res.Error != nil {
		return apperr.Storage(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("student %d is not enrolled in course %d", studentID, courseID)
	}
	return nil
}

// AvailableCourses lists the courses of the student's college the
// student has not enrolled in, with their timetables.
func (s *gormStore) AvailableCourses(ctx context.Context, studentID int64) ([]CourseInfo, error) {
	student, err := s.fetchStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var courses []model.Course
	if err := s.db.WithContext(ctx).
		Preload("TimeSlots").
		Where("college_id = ?", student.CollegeID).
		Where("id NOT IN (?)", s.db.Model(&model.Enrollment{}).
			Select("course_id").Where("student_id = ?", studentID)).
		Order("code").
		Find(&courses).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	return courseInfos(courses), nil
}

// EnrolledCourses lists the student's current enrollments with their
// timetables.
func (s *gormStore) EnrolledCourses(ctx context.Context, studentID int64) ([]CourseInfo, error) {
	if _, err := s.fetchStudent(ctx, studentID); err != nil {
		return nil, err
	}

	var courses []model.Course
	if err := s.db.WithContext(ctx).
		Preload("TimeSlots").
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.student_id = ?", studentID).
		Order("courses.code").
		Find(&courses).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	return courseInfos(courses), nil
}

func (s *gormStore) fetchStudent(ctx context.Context, studentID int64) (*model.Student, error) {
	var student model.Student
	if err := s.db.WithContext(ctx).First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("student %d not found", studentID)
		}
		return nil, apperr.Storage(err)
	}
	return &student, nil
}

// requestedSlots loads the timetables of the requested courses as one
// flat sequence, labeled by course code, in a deterministic order so the
// conflict checker always reports the same pair for the same request.
func requestedSlots(tx *gorm.DB, courseIDs []int64) ([]schedule.Slot, error) {
	var rows []slotRow
	if err := tx.Model(&model.TimeSlot{}).
		Select("time_slots.id, time_slots.course_id, time_slots.weekday, time_slots.start_sec, time_slots.end_sec, courses.code").
		Joins("JOIN courses ON courses.id = time_slots.course_id").
		Where("time_slots.course_id IN ?", courseIDs).
		Order("time_slots.course_id, time_slots.id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	slots := make([]schedule.Slot, len(rows))
	for i, r := range rows {
		slots[i] = r.toSlot()
	}
	return slots, nil
}

// enrolledSlots loads the timetables of the courses the student is
// already enrolled in, excluding the requested set so a duplicate
// request is caught by the duplicate guard rather than reported as a
// conflict of a course with itself.
func enrolledSlots(tx *gorm.DB, studentID int64, excludeCourseIDs []int64) ([]schedule.Slot, error) {
	var rows []slotRow
	if err := tx.Model(&model.TimeSlot{}).
		Select("time_slots.id, time_slots.course_id, time_slots.weekday, time_slots.start_sec, time_slots.end_sec, courses.code").
		Joins("JOIN courses ON courses.id = time_slots.course_id").
		Joins("JOIN enrollments ON enrollments.course_id = time_slots.course_id").
		Where("enrollments.student_id = ?", studentID).
		Where("time_slots.course_id NOT IN ?", excludeCourseIDs).
		Order("time_slots.course_id, time_slots.id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	slots := make([]schedule.Slot, len(rows))
	for i, r := range rows {
		slots[i] = r.toSlot()
	}
	return slots, nil
}

func courseInfos(courses []model.Course) []CourseInfo {
	infos := make([]CourseInfo, len(courses))
	for i, c := range courses {
		slots := make([]SlotInfo, len(c.TimeSlots))
		for j := range c.TimeSlots {
			slots[j] = *slotInfo(&c.TimeSlots[j])
		}
		infos[i] = CourseInfo{ID: c.ID, Code: c.Code, Name: c.Name, Credits: c.Credits, Slots: slots}
	}
	return infos
}
