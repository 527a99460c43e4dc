package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/app"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/config"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/logger"
)

func main() {
	// Best-effort: the environment itself wins over any .env file.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	// Ensure logger flush; ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	if err := app.New(cfg, log).Run(context.Background()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
