package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalhub/internal/app/hub"
	"signalhub/internal/app/server"
	"signalhub/internal/config"
	"signalhub/internal/core/services"
	"signalhub/internal/platform/logger"
	"signalhub/internal/platform/telemetry"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		if otelShutdown == nil {
			return
		}
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Core
	connHub := hub.NewHub(log)
	ids := services.NewIdentityRegistry()
	presence := services.NewPresenceBroadcaster(log, ids, connHub)
	friends := services.NewFriendService(log, ids, connHub)
	messages := services.NewMessageService(log, ids, connHub)
	calls := services.NewCallService(log, ids, connHub)
	relay := services.NewRelayService(log, ids, presence, friends, messages, calls, connHub)

	// HTTP
	srv := server.NewServer(cfg, log, connHub, relay)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	log.Info("application stopped")
}
