package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-enroll-backend/internal/apperr"
	"course-enroll-backend/internal/model"
	"course-enroll-backend/internal/schedule"
)

// AddTimeSlot persists a new slot for a course after checking that no
// currently enrolled student would end up with an overlapping schedule.
func (s *gormStore) AddTimeSlot(ctx context.Context, courseID int64, day time.Weekday, startSec, endSec int) (*SlotInfo, error) {
	if err := validateInterval(day, startSec, endSec); err != nil {
		return nil, err
	}

	var info *SlotInfo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err := lockCourse(tx, courseID)
		if err != nil {
			return err
		}

		candidate := schedule.Slot{Label: course.Code, Day: day, Start: startSec, End: endSec}
		if err := s.guardEnrolledStudents(tx, course, candidate, 0); err != nil {
			return err
		}

		slot := model.TimeSlot{
			CourseID: courseID,
			Weekday:  int(day),
			StartSec: startSec,
			EndSec:   endSec,
		}
		if err := tx.Create(&slot).Error; err != nil {
			return apperr.Storage(err)
		}
		info = slotInfo(&slot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timeslot added",
		zap.Int64("course_id", courseID),
		zap.String("weekday", day.String()),
	)
	return info, nil
}

// UpdateTimeSlot applies a partial update to a slot under the same
// guard. The slot being updated is excluded from the schedules it is
// checked against, since it is about to be replaced.
func (s *gormStore) UpdateTimeSlot(ctx context.Context, slotID int64, upd TimeSlotUpdate) (*SlotInfo, error) {
	var info *SlotInfo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.TimeSlot
		if err := tx.First(&slot, slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("timeslot %d not found", slotID)
			}
			return apperr.Storage(err)
		}

		if upd.Weekday != nil {
			slot.Weekday = int(*upd.Weekday)
		}
		if upd.StartSec != nil {
			slot.StartSec = *upd.StartSec
		}
		if upd.EndSec != nil {
			slot.EndSec = *upd.EndSec
		}
		if err := validateInterval(time.Weekday(slot.Weekday), slot.StartSec, slot.EndSec); err != nil {
			return err
		}

		course, err := lockCourse(tx, slot.CourseID)
		if err != nil {
			return err
		}

		candidate := schedule.Slot{
			Label: course.Code,
			Day:   time.Weekday(slot.Weekday),
			Start: slot.StartSec,
			End:   slot.EndSec,
		}
		if err := s.guardEnrolledStudents(tx, course, candidate, slotID); err != nil {
			return err
		}

		if err := tx.Save(&slot).Error; err != nil {
			return apperr.Storage(err)
		}
		info = slotInfo(&slot)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timeslot updated", zap.Int64("timeslot_id", slotID))
	return info, nil
}

// DeleteTimeSlot removes a slot. Removing a slot can only reduce
// conflicts, so no conflict check runs. Returns the owning course ID.
func (s *gormStore) DeleteTimeSlot(ctx context.Context, slotID int64) (int64, error) {
	var courseID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var slot model.TimeSlot
		if err := tx.First(&slot, slotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("timeslot %d not found", slotID)
			}
			return apperr.Storage(err)
		}
		if err := tx.Delete(&model.TimeSlot{}, slotID).Error; err != nil {
			return apperr.Storage(err)
		}
		courseID = slot.CourseID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("timeslot deleted", zap.Int64("timeslot_id", slotID))
	return courseID, nil
}

// CourseTimetable lists a course's slots ordered by weekday and start.
func (s *gormStore) CourseTimetable(ctx context.Context, courseID int64) ([]SlotInfo, error) {
	if err := s.checkCourseExists(ctx, courseID); err != nil {
		return nil, err
	}

	var slots []model.TimeSlot
	if err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("weekday, start_sec").
		Find(&slots).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	infos := make([]SlotInfo, len(slots))
	for i := range slots {
		infos[i] = *slotInfo(&slots[i])
	}
	return infos, nil
}

// EnrolledStudents lists the students enrolled in a course.
func (s *gormStore) EnrolledStudents(ctx context.Context, courseID int64) ([]StudentInfo, error) {
	if err := s.checkCourseExists(ctx, courseID); err != nil {
		return nil, err
	}

	var students []model.Student
	if err := s.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.student_id = students.id").
		Where("enrollments.course_id = ?", courseID).
		Order("students.id").
		Find(&students).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	infos := make([]StudentInfo, len(students))
	for i, st := range students {
		infos[i] = StudentInfo{ID: st.ID, Name: st.Name}
	}
	return infos, nil
}

// guardEnrolledStudents checks a candidate slot against the combined
// other-course schedules of every student enrolled in the course,
// collecting every student the change would break. excludeSlotID skips
// the slot being replaced during an update (0 skips nothing).
//
// The student rows are locked so the mutation serializes against an
// in-flight enrollment holding the same student's row lock. Without it
// the guard could read a student's schedule while that student is
// concurrently enrolling in another course, and both could commit.
func (s *gormStore) guardEnrolledStudents(tx *gorm.DB, course *model.Course, candidate schedule.Slot, excludeSlotID int64) error {
	var students []model.Student
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Joins("JOIN enrollments ON enrollments.student_id = students.id").
		Where("enrollments.course_id = ?", course.ID).
		Order("students.id").
		Find(&students).Error; err != nil {
		return apperr.Storage(err)
	}
	if len(students) == 0 {
		return nil
	}

	studentIDs := make([]int64, len(students))
	for i, st := range students {
		studentIDs[i] = st.ID
	}

	// All slots of all other courses these students are enrolled in,
	// keyed by student.
	q := tx.Model(&model.TimeSlot{}).
		Select("time_slots.id, time_slots.course_id, time_slots.weekday, time_slots.start_sec, time_slots.end_sec, courses.code, enrollments.student_id").
		Joins("JOIN courses ON courses.id = time_slots.course_id").
		Joins("JOIN enrollments ON enrollments.course_id = time_slots.course_id").
		Where("enrollments.student_id IN ?", studentIDs).
		Where("time_slots.course_id <> ?", course.ID).
		Order("enrollments.student_id, time_slots.course_id, time_slots.id")
	if excludeSlotID > 0 {
		q = q.Where("time_slots.id <> ?", excludeSlotID)
	}
	var rows []slotRow
	if err := q.Scan(&rows).Error; err != nil {
		return apperr.Storage(err)
	}

	byStudent := make(map[int64][]schedule.Slot, len(students))
	for _, r := range rows {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r.toSlot())
	}

	var details []string
	var affected []string
	for _, st := range students {
		if c := schedule.FindConflictWith(candidate, byStudent[st.ID]); c != nil {
			affected = append(affected, st.Name)
			details = append(details, fmt.Sprintf("%s has %s (%s %s)",
				st.Name, c.First.Label, c.Day, c.First.Interval()))
		}
	}
	if len(affected) > 0 {
		return apperr.ScheduleConflict("%s %s %s would conflict for enrolled students: %s",
			course.Code, candidate.Day, candidate.Interval(),
			strings.Join(details, "; ")).WithEntities(affected...)
	}
	return nil
}

func lockCourse(tx *gorm.DB, courseID int64) (*model.Course, error) {
	var course model.Course
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("course %d not found", courseID)
		}
		return nil, apperr.Storage(err)
	}
	return &course, nil
}

func (s *gormStore) checkCourseExists(ctx context.Context, courseID int64) error {
	var course model.Course
	if err := s.db.WithContext(ctx).Select("id").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("course %d not found", courseID)
		}
		return apperr.Storage(err)
	}
	return nil
}

func validateInterval(day time.Weekday, startSec, endSec int) error {
	if day < time.Sunday || day > time.Saturday {
		return apperr.InvalidInput("invalid weekday %d", int(day))
	}
	if startSec < 0 || endSec > 24*3600 {
		return apperr.InvalidInput("time of day out of range")
	}
	if startSec >= endSec {
		return apperr.InvalidInput("start %s must be before end %s",
			schedule.FormatClock(startSec), schedule.FormatClock(endSec))
	}
	return nil
}
