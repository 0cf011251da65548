// Package http wires the stateless HTTP surface: auth, notification
// history, push subscriptions, and the websocket upgrade.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/sharelist/sharelist-sync/internal/api/http/handler"
	"github.com/sharelist/sharelist-sync/internal/api/http/middleware"
	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/model"
	"github.com/sharelist/sharelist-sync/internal/realtime"
	"github.com/sharelist/sharelist-sync/internal/service"
)

// Router manages route registration and middleware configuration.
type Router struct {
	authService         *service.Auth
	tokenService        *service.TokenService
	notificationService *service.Notification
	fanoutService       *service.FanOut
	subscriptionStore   model.PushSubscriptionStore
	hub                 *realtime.Hub
	logger              *logger.Logger
}

// New creates a new Router instance.
func New(
	authService *service.Auth,
	tokenService *service.TokenService,
	notificationService *service.Notification,
	fanoutService *service.FanOut,
	subscriptionStore model.PushSubscriptionStore,
	hub *realtime.Hub,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:         authService,
		tokenService:        tokenService,
		notificationService: notificationService,
		fanoutService:       fanoutService,
		subscriptionStore:   subscriptionStore,
		hub:                 hub,
		logger:              logger,
	}
}

// Register builds the gin engine with all routes and middleware.
func (r *Router) Register() *gin.Engine {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.Handle)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authHandler := handler.NewAuth(r.authService, r.tokenService, r.logger)
	auth := engine.Group("/api/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
	}

	api := engine.Group("/api/v1")
	api.Use(authenticate.Handle)
	{
		notificationHandler := handler.NewNotification(r.notificationService, r.logger)
		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
		}

		eventHandler := handler.NewEvent(r.fanoutService, r.logger)
		api.POST("/lists/:id/events", eventHandler.Publish)

		pushHandler := handler.NewPush(r.subscriptionStore, r.logger)
		push := api.Group("/push")
		{
			push.POST("/subscriptions", pushHandler.Subscribe)
			push.DELETE("/subscriptions", pushHandler.Unsubscribe)
		}
	}

	// The websocket endpoint authenticates inside the handler, before the
	// upgrade, so handshake failures stay plain HTTP.
	wsHandler := handler.NewWS(r.hub, r.tokenService, r.logger)
	engine.GET("/ws", wsHandler.Handle)

	return engine
}
