package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mapweather/internal/config"
	"mapweather/internal/timezone"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger) // Set as default logger for the application

	if cfg.Provider.APIKey == "" {
		logger.Warn("no weather provider API key configured; set MAPWEATHER_PROVIDER_APIKEY")
	}

	tzSvc, err := timezone.NewService()
	if err != nil {
		logger.Error("failed to create timezone service", "error", err)
		log.Fatal(err)
	}

	// Create app
	app := NewApp(cfg, logger, tzSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	logger.Info("starting server", "addr", cfg.GetServerAddr())
	if err := app.Run(ctx, cfg.GetServerAddr()); err != nil {
		logger.Error("server failed", "error", err)
		log.Fatal(err)
	}
}
