package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/api/http/middleware"
	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
)

// Push manages a user's Web Push subscriptions.
type Push struct {
	subs   model.PushSubscriptionStore
	logger *logger.Logger
}

func NewPush(subs model.PushSubscriptionStore, logger *logger.Logger) *Push {
	return &Push{subs: subs, logger: logger}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
}

// Subscribe handles POST /push/subscriptions.
func (h *Push) Subscribe(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := model.PushSubscription{
		ID:        uuid.New(),
		UserID:    identity.UserID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
	}
	if err := h.subs.Save(c.Request.Context(), sub); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// Unsubscribe handles DELETE /push/subscriptions. Only the caller's own
// endpoint can be removed.
func (h *Push) Unsubscribe(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.ownsEndpoint(c.Request.Context(), identity.UserID, req.Endpoint) {
		// Absent and foreign endpoints both answer 204: unsubscribing is
		// idempotent and never confirms another user's endpoint.
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.subs.DeleteByEndpoint(c.Request.Context(), req.Endpoint); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Push) ownsEndpoint(ctx context.Context, userID uuid.UUID, endpoint string) bool {
	subs, err := h.subs.GetByUser(ctx, userID)
	if err != nil {
		h.logger.Warn("push handler: subscription lookup failed", "user_id", userID, "error", err)
		return false
	}
	for _, sub := range subs {
		if sub.Endpoint == endpoint {
			return true
		}
	}
	return false
}
