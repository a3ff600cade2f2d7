package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"course-enroll-backend/internal/apperr"
)

type enrollRequest struct {
	CourseIDs []int64 `json:"course_ids" binding:"required"`
}

// PostEnrollments handles POST /api/students/{student_id}/enrollments.
func (h *Handler) PostEnrollments(c *gin.Context) {
	studentID, ok := pathID(c, "student_id")
	if !ok {
		return
	}

	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("invalid request body: course_ids is required"))
		return
	}
	if len(req.CourseIDs) == 0 {
		writeError(c, apperr.InvalidInput("course_ids must not be empty"))
		return
	}

	enrollments, err := h.store.Enroll(c.Request.Context(), studentID, req.CourseIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"enrollments": enrollments})
}

// DeleteEnrollment handles DELETE /api/students/{student_id}/enrollments/{course_id}.
func (h *Handler) DeleteEnrollment(c *gin.Context) {
	studentID, ok := pathID(c, "student_id")
	if !ok {
		return
	}
	courseID, ok := pathID(c, "course_id")
	if !ok {
		return
	}

	if err := h.store.DropCourse(c.Request.Context(), studentID, courseID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetAvailableCourses handles GET /api/students/{student_id}/courses/available.
func (h *Handler) GetAvailableCourses(c *gin.Context) {
	studentID, ok := pathID(c, "student_id")
	if !ok {
		return
	}

	courses, err := h.store.AvailableCourses(c.Request.Context(), studentID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// GetEnrolledCourses handles GET /api/students/{student_id}/courses.
func (h *Handler) GetEnrolledCourses(c *gin.Context) {
	studentID, ok := pathID(c, "student_id")
	if !ok {
		return
	}

	courses, err := h.store.EnrolledCourses(c.Request.Context(), studentID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// pathID parses a numeric path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperr.InvalidInput("invalid %s", name))
		return 0, false
	}
	return id, true
}
