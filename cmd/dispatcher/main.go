package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/auto-trigger/internal/app/dispatcher"
	"github.com/magabrotheeeer/auto-trigger/internal/config"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting dispatcher", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := dispatcher.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dispatcher", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("dispatcher stopped with error", sl.Err(err))
		os.Exit(1)
	}
}
