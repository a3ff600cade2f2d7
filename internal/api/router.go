package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"course-enroll-backend/config"
	"course-enroll-backend/internal/mw"
	"course-enroll-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, webpushOptions *webpush.Options, pool Dispatcher, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, webpushOptions, pool)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)
	flushing := mw.FlushOnSuccess(cacheStore)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Enrollment
		api.POST("/students/:student_id/enrollments", flushing, handler.PostEnrollments)
		api.DELETE("/students/:student_id/enrollments/:course_id", flushing, handler.DeleteEnrollment)
		api.GET("/students/:student_id/courses", handler.GetEnrolledCourses)
		api.GET("/students/:student_id/courses/available", handler.GetAvailableCourses)

		// Timetable administration
		api.POST("/courses/:course_id/timeslots", flushing, handler.PostTimeSlot)
		api.PATCH("/timeslots/:timeslot_id", flushing, handler.PatchTimeSlot)
		api.DELETE("/timeslots/:timeslot_id", flushing, handler.DeleteTimeSlot)
		api.GET("/courses/:course_id/timetable", caching, handler.GetCourseTimetable)
		api.GET("/courses/:course_id/students", handler.GetEnrolledStudents)

		// Push subscriptions
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
