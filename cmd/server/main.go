package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/steelhouse/smartpixel-config-service/internal/api"
	"github.com/steelhouse/smartpixel-config-service/internal/config"
	"github.com/steelhouse/smartpixel-config-service/internal/db"
	"github.com/steelhouse/smartpixel-config-service/internal/events"
	"github.com/steelhouse/smartpixel-config-service/internal/rbclient"
	"github.com/steelhouse/smartpixel-config-service/internal/shopify"
	"github.com/steelhouse/smartpixel-config-service/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.NewStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("FATAL: failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Error("FATAL: failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	rbService := rbclient.NewService(store, logger)
	shopifyService := shopify.NewService(store, logger)
	server := api.NewServer(rbService, shopifyService, store, publisher, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("smart pixel config service started", "addr", cfg.ListenAddr, "pid", os.Getpid())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("FATAL: http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}
