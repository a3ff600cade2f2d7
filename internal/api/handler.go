package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"course-enroll-backend/internal/apperr"
	"course-enroll-backend/internal/store"
)

// Dispatcher queues a timetable-change event for a course.
type Dispatcher interface {
	Dispatch(courseID int64)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
	pool    Dispatcher
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, pool Dispatcher) *Handler {
	return &Handler{
		store:   s,
		webpush: webpushOptions,
		pool:    pool,
	}
}

func (h *Handler) notifyCourse(courseID int64) {
	if h.pool != nil {
		h.pool.Dispatch(courseID)
	}
}

// writeError maps a structured failure onto an HTTP status and the
// error body: message, kind, and the machine-readable entity list.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPolicyViolation:
		status = http.StatusForbidden
	case apperr.KindScheduleConflict, apperr.KindAlreadyEnrolled:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if kind == apperr.KindStorage {
		// The cause stays in the logs; clients get a generic message.
		message = "unexpected storage error"
	}

	body := gin.H{"error": message, "kind": string(kind)}
	if entities := apperr.EntitiesOf(err); len(entities) > 0 {
		body["entities"] = entities
	}
	c.AbortWithStatusJSON(status, body)
}
