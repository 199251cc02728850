package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/evlync/evlync/docs"
	"github.com/evlync/evlync/internal/app"
	"github.com/evlync/evlync/internal/config"
)

// @title Evlync API
// @version 1.0
// @description Ticket inventory, checkout and check-in service.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
