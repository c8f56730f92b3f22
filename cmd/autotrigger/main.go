// Package main Auto Trigger API
//
// @title           Auto Trigger API
// @version         1.0
// @description     Панель управления рассылками: контакты, категории, сообщения и администрирование аккаунтов.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/magabrotheeeer/auto-trigger/docs"
	"github.com/magabrotheeeer/auto-trigger/internal/app/autotrigger"
	"github.com/magabrotheeeer/auto-trigger/internal/config"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting autotrigger", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := autotrigger.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("autotrigger stopped gracefully")
}
