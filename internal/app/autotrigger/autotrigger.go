// Package autotrigger собирает HTTP-приложение панели Auto Trigger.
package autotrigger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auto-trigger/internal/auth"
	"github.com/magabrotheeeer/auto-trigger/internal/backend"
	"github.com/magabrotheeeer/auto-trigger/internal/cache"
	"github.com/magabrotheeeer/auto-trigger/internal/config"
	"github.com/magabrotheeeer/auto-trigger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/jwt"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/auto-trigger/internal/migrations"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP-сервер панели и его ресурсы.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
	registry *session.Registry
}

// New подключается к PostgreSQL, Redis и RabbitMQ, применяет миграции
// и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		cacheRedis.Close()
		db.Close()
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Queues(), 0)
	if err != nil {
		conn.Close()
		cacheRedis.Close()
		db.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.ConfirmTTL)
	authService := auth.New(db, cacheRedis, publisher, jwtMaker, auth.Settings{
		RefreshTTL:          cfg.RefreshTokenTTL,
		PublicURL:           cfg.PublicURL,
		RequireConfirmation: cfg.RequireConfirmation,
	})

	clients := &backend.Factory{
		Auth:       authService,
		Store:      cacheRedis,
		Log:        logger,
		SessionTTL: cfg.RefreshTokenTTL,
	}
	roles := session.NewRoleResolver(db, cfg.RoleTimeout, logger)
	registry := session.NewRegistry(func(device string) *session.Provider {
		return session.NewProvider(clients.Client(device), roles, logger.With(slog.String("device", device)))
	}, cfg.IdleTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Log:           logger,
		Providers:     registry,
		Limiter:       middlewarectx.NewIPLimiter(cfg.AuthLimit, cfg.AuthBurst),
		Confirmer:     authService,
		Publisher:     publisher,
		Checker:       db,
		Store:         db,
		SecureCookies: strings.HasPrefix(cfg.PublicURL, "https://"),
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		cache:    cacheRedis,
		conn:     conn,
		ch:       ch,
		registry: registry,
	}, nil
}

// Run запускает сервер и реестр сессий и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	registryCtx, stopRegistry := context.WithCancel(ctx)
	registryDone := make(chan struct{})
	go func() {
		defer close(registryDone)
		a.registry.Run(registryCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	stopRegistry()
	<-registryDone
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", slog.Any("err", err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", slog.Any("err", err))
	}
}
