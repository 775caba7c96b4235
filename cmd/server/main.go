package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leadsync/internal/app"
	"leadsync/pkg/config"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.New(ctx, cfg, log, metrics.New(nil))
	if err != nil {
		log.WithError(err).Error("Failed to initialize")
		os.Exit(1)
	}
	defer env.Close()

	if err := env.Serve(ctx, cfg.Server.Port); err != nil {
		log.WithError(err).Error("Server stopped")
		os.Exit(1)
	}
}
