package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	httpapi "github.com/sharelist/sharelist-sync/internal/api/http"
	"github.com/sharelist/sharelist-sync/internal/config"
	"github.com/sharelist/sharelist-sync/internal/logger"
	"github.com/sharelist/sharelist-sync/internal/push"
	"github.com/sharelist/sharelist-sync/internal/realtime"
	"github.com/sharelist/sharelist-sync/internal/repository/postgres"
	"github.com/sharelist/sharelist-sync/internal/server"
	"github.com/sharelist/sharelist-sync/internal/service"
	"github.com/sharelist/sharelist-sync/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	subscriptionRepo := postgres.NewSubscriptionRepository(db)
	listDirRepo := postgres.NewListDirectoryRepository(db)

	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	tokenService := service.NewTokenService(tokenManager, refreshTokenRepo, userRepo, cfg.JWT.RefreshTTL, logger)
	authService := service.NewAuth(userRepo, tokenService, logger)
	notificationService := service.NewNotification(notificationRepo, logger)

	hub := realtime.NewHub(service.NewListAccess(listDirRepo), logger)

	sender := push.NewWebPushSender(push.VAPIDConfig{
		Subject:    cfg.Push.VAPIDSubject,
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey,
	})
	dispatcher := push.NewDispatcher(subscriptionRepo, sender, cfg.Push.Workers, cfg.Push.QueueCapacity, logger)

	fanoutService := service.NewFanOut(listDirRepo, notificationRepo, userRepo, hub, dispatcher, logger)

	router := httpapi.New(authService, tokenService, notificationService, fanoutService, subscriptionRepo, hub, logger)
	engine := router.Register()

	httpServer := server.NewHTTPServer(engine, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl server.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runJanitor(ctx, logger, cfg.Retention, tokenService, notificationService)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting server on", "address", httpServer.Address())
		if err := httpServer.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

// runJanitor periodically sweeps expired refresh tokens and aged
// notifications. A zero interval disables it.
func runJanitor(
	ctx context.Context,
	logger *logger.Logger,
	cfg config.Retention,
	tokens *service.TokenService,
	notifications *service.Notification,
) {
	if cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tokens.SweepExpired(ctx); err != nil {
				logger.Error("refresh token sweep failed", "error", err)
			}
			if err := notifications.SweepOlderThan(ctx, cfg.NotificationAge); err != nil {
				logger.Error("notification sweep failed", "error", err)
			}
		}
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
