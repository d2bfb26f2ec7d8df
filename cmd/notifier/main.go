package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/locationup/locationup-go/internal/notifications"
	"github.com/locationup/locationup-go/internal/panel"
	"github.com/locationup/locationup-go/internal/session"
	"github.com/locationup/locationup-go/internal/stream"
	"github.com/locationup/locationup-go/pkg/config"
	"github.com/locationup/locationup-go/pkg/logger"
	"github.com/locationup/locationup-go/pkg/metrics"
	"github.com/locationup/locationup-go/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "notifier"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "notifier",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.Session)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	apiClient, err := notifications.NewClient(cfg.API.BaseURL,
		notifications.WithToken(cfg.API.Token),
		notifications.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
	)
	if err != nil {
		logg.Error(ctx, "failed to create notifications client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()

	panelStore, err := panel.NewStore(apiClient, panel.WithLogger(logg))
	if err != nil {
		logg.Error(ctx, "failed to create panel store", err)
		os.Exit(1)
	}

	streamClient, err := stream.NewClient(cfg.Stream.BaseURL,
		stream.WithLogger(logg),
		stream.WithMetrics(metrics.NewStreamMetrics(registry)),
		stream.WithAPIClient(apiClient),
	)
	if err != nil {
		logg.Error(ctx, "failed to create stream client", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		Sessions: sessionManager,
		Stream:   streamClient,
		Panel:    panelStore,
		Registry: registry,
	})
	if err != nil {
		logg.Error(ctx, "failed to assemble notifier", err)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "starting notifier")

	runErr := service.Run(ctx)
	if closeErr := service.Close(); closeErr != nil {
		logg.Error(context.Background(), "error during shutdown", closeErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(context.Background(), "notifier stopped unexpectedly", runErr)
		os.Exit(1)
	}
	logg.Info(context.Background(), "notifier shut down gracefully")
}
