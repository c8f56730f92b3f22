// Команда grantrole назначает роль пользователю:
//
//	grantrole -user <uuid> -role admin
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/auto-trigger/internal/config"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

func main() {
	userID := flag.String("user", "", "user id")
	role := flag.String("role", models.RoleAdmin, "role: admin, moderator or user")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stderr)

	if *userID == "" {
		logger.Error("flag -user is required")
		os.Exit(2)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.AssignRole(ctx, *userID, *role); err != nil {
		logger.Error("failed to assign role", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("role assigned", slog.String("user_id", *userID), slog.String("role", *role))
}
