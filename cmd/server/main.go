package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stratboard/internal/api"
	"stratboard/internal/auth"
	"stratboard/internal/config"
	"stratboard/internal/db"
	"stratboard/internal/repository"
	"stratboard/internal/services/collaboration"
	"stratboard/internal/telemetry"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	telemetry.InitLogging(cfg.LogLevel, cfg.LogFormat)
	logrus.Info("Starting stratboard collaboration server")

	// Tracing goes up before anything that opens spans
	jaegerShutdown := func(context.Context) error { return nil }
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitJaeger("stratboard", cfg.JaegerEndpoint)
		if err != nil {
			logrus.WithError(err).Warn("Failed to initialize Jaeger, continuing without tracing")
		} else {
			jaegerShutdown = shutdown
		}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to shutdown Jaeger")
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close()

	gateway := repository.NewGateway(database.DB)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, time.Now)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create credential verifier")
	}

	sessionManager := collaboration.NewSessionManager(gateway, collaboration.Options{
		CursorTimeout:   cfg.CursorTimeout,
		CursorThrottle:  cfg.CursorThrottle,
		RoomGracePeriod: cfg.RoomGracePeriod,
		CleanupInterval: cfg.CleanupInterval,
		OutboxSize:      cfg.OutboxSize,
	})
	sessionManager.Start()

	wsHandler := collaboration.NewWebSocketHandler(sessionManager, verifier, cfg.AllowedOrigins)
	handler := api.NewHandler(sessionManager, wsHandler, gateway, gateway, cfg.MaxOperatorSlots)
	router := api.SetupRoutes(handler, verifier)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":      cfg.Addr(),
			"websocket": "/ws",
			"rooms":     "/api/rooms",
		}).Info("Server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by the server; the session
	// manager closes them.
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server forced to shutdown")
	}
	sessionManager.Shutdown()

	logrus.Info("Server shutdown complete")
}
