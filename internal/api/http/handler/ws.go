package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"github.com/sharelist/sharelist-sync/internal/api/http/middleware"
	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
	"github.com/sharelist/sharelist-sync/internal/realtime"
)

// WS upgrades authenticated requests onto the realtime channel.
// Authentication happens before the upgrade so a stale token is rejected
// with a plain 401 the client's channel manager can branch on.
type WS struct {
	hub          *realtime.Hub
	tokenService middleware.TokenService
	logger       *logger.Logger
}

func NewWS(hub *realtime.Hub, tokenService middleware.TokenService, logger *logger.Logger) *WS {
	return &WS{hub: hub, tokenService: tokenService, logger: logger}
}

// Handle serves GET /ws.
func (h *WS) Handle(c *gin.Context) {
	tokenString := middleware.BearerToken(c.Request)
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": middleware.CodeTokenInvalid, "error": "missing authorization token"})
		return
	}

	identity, err := h.tokenService.Authenticate(c.Request.Context(), tokenString)
	if err != nil {
		code := middleware.CodeTokenInvalid
		if errors.Is(err, model.ErrTokenExpired) {
			code = middleware.CodeTokenExpired
		}
		c.JSON(http.StatusUnauthorized, gin.H{"code": code, "error": "handshake rejected"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	session := realtime.NewSession(h.hub, conn, identity)
	session.Serve(c.Request.Context())
}
