package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"course-enroll-backend/internal/apperr"
	"course-enroll-backend/internal/schedule"
	"course-enroll-backend/internal/store"
)

type addTimeSlotRequest struct {
	Weekday string `json:"weekday" binding:"required"`
	Start   string `json:"start" binding:"required"`
	End     string `json:"end" binding:"required"`
}

// PostTimeSlot handles POST /api/courses/{course_id}/timeslots.
// Malformed weekday or clock values fail before any storage access.
func (h *Handler) PostTimeSlot(c *gin.Context) {
	courseID, ok := pathID(c, "course_id")
	if !ok {
		return
	}

	var req addTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("weekday, start and end are required"))
		return
	}

	day, startSec, endSec, ok := parseSlotFields(c, req.Weekday, req.Start, req.End)
	if !ok {
		return
	}

	slot, err := h.store.AddTimeSlot(c.Request.Context(), courseID, day, startSec, endSec)
	if err != nil {
		writeError(c, err)
		return
	}

	h.notifyCourse(courseID)
	c.JSON(http.StatusCreated, slot)
}

type updateTimeSlotRequest struct {
	Weekday *string `json:"weekday"`
	Start   *string `json:"start"`
	End     *string `json:"end"`
}

// PatchTimeSlot handles PATCH /api/timeslots/{timeslot_id}.
func (h *Handler) PatchTimeSlot(c *gin.Context) {
	slotID, ok := pathID(c, "timeslot_id")
	if !ok {
		return
	}

	var req updateTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("invalid request body"))
		return
	}
	if req.Weekday == nil && req.Start == nil && req.End == nil {
		writeError(c, apperr.InvalidInput("no fields to update"))
		return
	}

	var upd store.TimeSlotUpdate
	if req.Weekday != nil {
		day, err := schedule.ParseWeekday(*req.Weekday)
		if err != nil {
			writeError(c, apperr.InvalidInput("%s", err))
			return
		}
		upd.Weekday = &day
	}
	if req.Start != nil {
		sec, err := schedule.ParseClock(*req.Start)
		if err != nil {
			writeError(c, apperr.InvalidInput("%s", err))
			return
		}
		upd.StartSec = &sec
	}
	if req.End != nil {
		sec, err := schedule.ParseClock(*req.End)
		if err != nil {
			writeError(c, apperr.InvalidInput("%s", err))
			return
		}
		upd.EndSec = &sec
	}
	// When the request replaces both ends of the interval it can be
	// rejected here, before the slot lookup. Partial updates need the
	// stored slot to judge the combined interval.
	if upd.StartSec != nil && upd.EndSec != nil && *upd.StartSec >= *upd.EndSec {
		writeError(c, apperr.InvalidInput("start %s must be before end %s", *req.Start, *req.End))
		return
	}

	slot, err := h.store.UpdateTimeSlot(c.Request.Context(), slotID, upd)
	if err != nil {
		writeError(c, err)
		return
	}

	h.notifyCourse(slot.CourseID)
	c.JSON(http.StatusOK, slot)
}

// DeleteTimeSlot handles DELETE /api/timeslots/{timeslot_id}.
// Removing a slot needs no conflict check.
func (h *Handler) DeleteTimeSlot(c *gin.Context) {
	slotID, ok := pathID(c, "timeslot_id")
	if !ok {
		return
	}

	courseID, err := h.store.DeleteTimeSlot(c.Request.Context(), slotID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.notifyCourse(courseID)
	c.Status(http.StatusNoContent)
}

// GetCourseTimetable handles GET /api/courses/{course_id}/timetable.
func (h *Handler) GetCourseTimetable(c *gin.Context) {
	courseID, ok := pathID(c, "course_id")
	if !ok {
		return
	}

	slots, err := h.store.CourseTimetable(c.Request.Context(), courseID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"timeslots": slots})
}

// GetEnrolledStudents handles GET /api/courses/{course_id}/students.
func (h *Handler) GetEnrolledStudents(c *gin.Context) {
	courseID, ok := pathID(c, "course_id")
	if !ok {
		return
	}

	students, err := h.store.EnrolledStudents(c.Request.Context(), courseID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"students": students})
}

func parseSlotFields(c *gin.Context, weekday, start, end string) (time.Weekday, int, int, bool) {
	day, err := schedule.ParseWeekday(weekday)
	if err != nil {
		writeError(c, apperr.InvalidInput("%s", err))
		return 0, 0, 0, false
	}
	startSec, err := schedule.ParseClock(start)
	if err != nil {
		writeError(c, apperr.InvalidInput("%s", err))
		return 0, 0, 0, false
	}
	endSec, err := schedule.ParseClock(end)
	if err != nil {
		writeError(c, apperr.InvalidInput("%s", err))
		return 0, 0, 0, false
	}
	if startSec >= endSec {
		writeError(c, apperr.InvalidInput("start %s must be before end %s", start, end))
		return 0, 0, 0, false
	}
	return day, startSec, endSec, true
}
