package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"code-storage-client/config"
	"code-storage-client/internal/httpserver"
	"code-storage-client/internal/webhook"
	"code-storage-client/pkg/log"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config: ", err)
		return
	}

	// 2. Logger
	logger := log.Init(log.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting code storage webhook receiver...")
	logger.Infof(ctx, "Environment: %s", cfg.Environment.Name)

	// 3. Webhook receiver
	var webhookHandler *webhook.Handler
	if cfg.Webhook.Enabled && cfg.Webhook.Secret != "" {
		store := webhook.NewEventStore()
		webhookHandler = webhook.NewHandler(webhook.SecurityConfig{
			Secret:          cfg.Webhook.Secret,
			MaxAgeSeconds:   cfg.Webhook.MaxAgeSeconds,
			AllowedIPs:      cfg.Webhook.AllowedIPs,
			RateLimitPerMin: cfg.Webhook.RateLimitPerMin,
		}, store, logger)
		logger.Info(ctx, "Webhook receiver initialized")
	} else {
		logger.Warn(ctx, "Webhook receiver disabled: WEBHOOK_SECRET is missing or webhook.enabled is false")
	}

	// 4. HTTP Server
	httpServer, err := httpserver.New(logger, httpserver.Config{
		Logger:         logger,
		Port:           cfg.HTTPServer.Port,
		Mode:           cfg.HTTPServer.Mode,
		Environment:    cfg.Environment.Name,
		WebhookHandler: webhookHandler,
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize HTTP server: ", err)
		return
	}

	// 5. Run
	if err := httpServer.Run(); err != nil {
		logger.Error(ctx, "Failed to run server: ", err)
		return
	}

	logger.Info(ctx, "Server stopped gracefully")
}
