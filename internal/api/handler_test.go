package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"course-enroll-backend/config"
	"course-enroll-backend/internal/db"
	"course-enroll-backend/internal/model"
	"course-enroll-backend/internal/store"
)

var apiTestDBSeq int64

// recordingDispatcher captures the course IDs handed to the worker pool.
type recordingDispatcher struct {
	courseIDs []int64
}

func (d *recordingDispatcher) Dispatch(courseID int64) {
	d.courseIDs = append(d.courseIDs, courseID)
}

type testEnv struct {
	router     *gin.Engine
	db         *gorm.DB
	dispatcher *recordingDispatcher

	college model.College
	alice   model.Student
	math    model.Course // Monday 09:00:00-10:00:00
	physics model.Course // Monday 09:30:00-10:30:00
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", atomic.AddInt64(&apiTestDBSeq, 1))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	env := &testEnv{db: gormDB, dispatcher: &recordingDispatcher{}}

	env.college = model.College{Name: "Engineering"}
	require.NoError(t, gormDB.Create(&env.college).Error)
	env.alice = model.Student{Name: "Alice", CollegeID: env.college.ID}
	require.NoError(t, gormDB.Create(&env.alice).Error)

	env.math = model.Course{Code: "MATH101", Name: "Calculus I", Credits: 3, CollegeID: env.college.ID}
	require.NoError(t, gormDB.Create(&env.math).Error)
	require.NoError(t, gormDB.Create(&model.TimeSlot{
		CourseID: env.math.ID, Weekday: int(time.Monday), StartSec: 9 * 3600, EndSec: 10 * 3600,
	}).Error)

	env.physics = model.Course{Code: "PHYS101", Name: "Mechanics", Credits: 3, CollegeID: env.college.ID}
	require.NoError(t, gormDB.Create(&env.physics).Error)
	require.NoError(t, gormDB.Create(&model.TimeSlot{
		CourseID: env.physics.ID, Weekday: int(time.Monday), StartSec: 9*3600 + 1800, EndSec: 10*3600 + 1800,
	}).Error)

	appStore := store.NewGormStore(gormDB, zap.NewNop())
	env.router = NewRouter(appStore, &webpush.Options{VAPIDPublicKey: "test-public-key"}, env.dispatcher, &config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestPostEnrollments(t *testing.T) {
	t.Run("invalid student id", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", "/api/students/abc/enrollments", gin.H{"course_ids": []int64{1}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"invalid_input"`)
	})

	t.Run("missing course_ids", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/students/%d/enrollments", env.alice.ID), gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"invalid_input"`)
	})

	t.Run("empty course_ids", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/students/%d/enrollments", env.alice.ID), gin.H{"course_ids": []int64{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown student maps to 404", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", "/api/students/9999/enrollments", gin.H{"course_ids": []int64{env.math.ID}})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"not_found"`)
	})

	t.Run("schedule conflict maps to 409 with entities", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/students/%d/enrollments", env.alice.ID),
			gin.H{"course_ids": []int64{env.math.ID, env.physics.ID}})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"schedule_conflict"`)
		assert.Contains(t, w.Body.String(), "MATH101")
		assert.Contains(t, w.Body.String(), "PHYS101")
	})

	t.Run("success returns the created enrollments", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/students/%d/enrollments", env.alice.ID),
			gin.H{"course_ids": []int64{env.math.ID}})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "MATH101")
		assert.Contains(t, w.Body.String(), "Calculus I")
	})
}

func TestDeleteEnrollment(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", fmt.Sprintf("/api/students/%d/enrollments", env.alice.ID),
		gin.H{"course_ids": []int64{env.math.ID}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "DELETE", fmt.Sprintf("/api/students/%d/enrollments/%d", env.alice.ID, env.math.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Second drop in a row.
	w = env.do(t, "DELETE", fmt.Sprintf("/api/students/%d/enrollments/%d", env.alice.ID, env.math.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostTimeSlot(t *testing.T) {
	t.Run("malformed weekday fails before storage", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/courses/%d/timeslots", env.math.ID),
			gin.H{"weekday": "Funday", "start": "09:00:00", "end": "10:00:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"invalid_input"`)
		assert.Empty(t, env.dispatcher.courseIDs)
	})

	t.Run("malformed clock fails before storage", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/courses/%d/timeslots", env.math.ID),
			gin.H{"weekday": "Monday", "start": "9am", "end": "10:00:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("inverted interval fails before storage", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/courses/%d/timeslots", env.math.ID),
			gin.H{"weekday": "Monday", "start": "11:00:00", "end": "10:00:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("success notifies subscribers", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "POST", fmt.Sprintf("/api/courses/%d/timeslots", env.math.ID),
			gin.H{"weekday": "Friday", "start": "09:00:00", "end": "10:00:00"})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"weekday":"Friday"`)
		assert.Equal(t, []int64{env.math.ID}, env.dispatcher.courseIDs)
	})
}

func TestPatchTimeSlot(t *testing.T) {
	t.Run("inverted interval fails before the slot lookup", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "PATCH", "/api/timeslots/9999", gin.H{"start": "11:00:00", "end": "10:00:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"invalid_input"`)
		assert.Empty(t, env.dispatcher.courseIDs)
	})

	t.Run("unknown slot maps to 404", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(t, "PATCH", "/api/timeslots/9999", gin.H{"start": "11:00:00", "end": "12:00:00"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("partial update keeps the stored end", func(t *testing.T) {
		env := newTestEnv(t)
		var slot model.TimeSlot
		require.NoError(t, env.db.Where("course_id = ?", env.math.ID).First(&slot).Error)

		w := env.do(t, "PATCH", fmt.Sprintf("/api/timeslots/%d", slot.ID), gin.H{"start": "08:00:00"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"start":"08:00:00"`)
		assert.Contains(t, w.Body.String(), `"end":"10:00:00"`)
		assert.Equal(t, []int64{env.math.ID}, env.dispatcher.courseIDs)
	})
}

func TestGetCourseTimetable(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", fmt.Sprintf("/api/courses/%d/timetable", env.math.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"weekday":"Monday"`)
	assert.Contains(t, w.Body.String(), `"start":"09:00:00"`)

	w = env.do(t, "GET", "/api/courses/9999/timetable", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}
