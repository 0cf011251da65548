package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/api/http/middleware"
	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/service"
)

// Notification exposes the durable notification history and read state.
type Notification struct {
	notifications *service.Notification
	logger        *logger.Logger
}

func NewNotification(notifications *service.Notification, logger *logger.Logger) *Notification {
	return &Notification{notifications: notifications, logger: logger}
}

// List handles GET /notifications.
func (h *Notification) List(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.notifications.List(c.Request.Context(), identity.UserID, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": records})
}

// UnreadCount handles GET /notifications/unread-count.
func (h *Notification) UnreadCount(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	n, err := h.notifications.UnreadCount(c.Request.Context(), identity.UserID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": n})
}

// MarkRead handles PUT /notifications/:id/read.
func (h *Notification) MarkRead(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), id, identity.UserID); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkAllRead handles PUT /notifications/read-all.
func (h *Notification) MarkAllRead(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), identity.UserID); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
