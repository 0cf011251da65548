package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sharelist/sharelist-sync/internal/api/http/middleware"
	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
	"github.com/sharelist/sharelist-sync/internal/service"
)

// Event is the ingestion surface the list and product mutation layers
// call after a change commits. The actor is always the authenticated
// caller and must belong to the list; fan-out past that check is
// best-effort, so the endpoint answers 202 once the input is accepted.
type Event struct {
	fanout *service.FanOut
	logger *logger.Logger
}

func NewEvent(fanout *service.FanOut, logger *logger.Logger) *Event {
	return &Event{fanout: fanout, logger: logger}
}

type publishEventRequest struct {
	Type          string  `json:"type" binding:"required"`
	ProductID     *string `json:"productId"`
	ProductName   *string `json:"productName"`
	ExcludeUserID *string `json:"excludeUserId"`
	TargetUserID  *string `json:"targetUserId"`
}

// Publish handles POST /lists/:id/events. A request with targetUserId
// takes the single-target path; everything else fans out to the list's
// membership.
func (h *Event) Publish(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	listID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid list id"})
		return
	}

	var req publishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notificationType := model.NotificationType(req.Type)
	if !notificationType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	in := service.FanOutInput{
		Type:        notificationType,
		ListID:      listID,
		ActorID:     identity.UserID,
		ProductName: req.ProductName,
	}
	if req.ProductID != nil {
		id, err := uuid.Parse(*req.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		in.ProductID = &id
	}
	if req.ExcludeUserID != nil {
		id, err := uuid.Parse(*req.ExcludeUserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid excluded user id"})
			return
		}
		in.ExcludeUserID = &id
	}

	if req.TargetUserID != nil {
		target, err := uuid.Parse(*req.TargetUserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target user id"})
			return
		}
		if err := h.fanout.CreateNotification(c.Request.Context(), in, target); err != nil {
			handleError(c, err)
			return
		}
	} else if err := h.fanout.FanOutForListMembers(c.Request.Context(), in); err != nil {
		handleError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}
