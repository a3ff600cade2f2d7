package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-enroll-backend/internal/apperr"
	"course-enroll-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint          string  `json:"endpoint" binding:"required"`
	P256DH            string  `json:"p256dh" binding:"required"`
	Auth              string  `json:"auth" binding:"required"`
	SubscribedCourses []int64 `json:"subscribed_courses"`
}

// PutSubscription creates or replaces a push subscription and the set
// of courses it follows.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("endpoint, p256dh and auth are required"))
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.store.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&subscription).Error; err != nil {
			return err
		}

		var courses []model.Course
		if len(req.SubscribedCourses) > 0 {
			if err := tx.Find(&courses, req.SubscribedCourses).Error; err != nil {
				return err
			}
		}

		return tx.Model(&subscription).Association("Courses").Replace(&courses)
	})

	if err != nil {
		writeError(c, apperr.Storage(err))
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a push subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("endpoint is required"))
		return
	}

	if err := h.store.DB().Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error; err != nil {
		writeError(c, apperr.Storage(err))
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam extracts a query value without URL-decoding it, since
// push endpoints are compared byte-for-byte.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the courses a subscription follows.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		writeError(c, apperr.InvalidInput("endpoint is required"))
		return
	}

	var subscription model.PushSubscription
	if err := h.store.DB().Preload("Courses").First(&subscription, "endpoint = ?", raw).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			writeError(c, apperr.NotFound("subscription not found"))
		} else {
			writeError(c, apperr.Storage(err))
		}
		return
	}

	courseIDs := make([]int64, len(subscription.Courses))
	for i, course := range subscription.Courses {
		courseIDs[i] = course.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_courses": courseIDs})
}
