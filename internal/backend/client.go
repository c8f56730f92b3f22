// Package backend — клиент бэкенда для одного устройства (браузера).
// Хранит сессию устройства в Redis под фиксированным ключом, обновляет
// истекающие токены и рассылает уведомления об изменении сессии.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/cache"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// StorageKey — ключ, под которым хранится сессия устройства.
const StorageKey = "sb-auto-trigger-auth-token"

const (
	eventsPrefix  = "auth-events:"
	refreshLeeway = 30 * time.Second
)

// AuthService — аутентификационная часть бэкенда.
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, params models.SignUpParams) (*models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// SessionStore хранит сессии устройств и доставляет уведомления.
type SessionStore interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Publish(ctx context.Context, channel string, value any) error
	Subscribe(ctx context.Context, channel string) (*cache.Subscription, error)
}

// Client — клиент бэкенда, привязанный к устройству.
type Client struct {
	device     string
	auth       AuthService
	store      SessionStore
	log        *slog.Logger
	sessionTTL time.Duration
	now        func() time.Time
}

// Factory создает клиентов для устройств с общими зависимостями.
type Factory struct {
	Auth       AuthService
	Store      SessionStore
	Log        *slog.Logger
	SessionTTL time.Duration
}

// Client возвращает клиента устройства device.
func (f *Factory) Client(device string) *Client {
	return &Client{
		device:     device,
		auth:       f.Auth,
		store:      f.Store,
		log:        f.Log.With(slog.String("device", device)),
		sessionTTL: f.SessionTTL,
		now:        time.Now,
	}
}

// Device возвращает идентификатор устройства.
func (c *Client) Device() string {
	return c.device
}

func (c *Client) storageKey() string {
	return StorageKey + ":" + c.device
}

func (c *Client) channel() string {
	return eventsPrefix + c.device
}

// GetSession возвращает сохраненную сессию устройства или nil, если ее нет.
// Истекающий access-токен обновляется; при неудаче сохраненная сессия
// удаляется и подписчики получают SIGNED_OUT.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	const op = "backend.GetSession"

	var session models.Session
	found, err := c.store.Get(ctx, c.storageKey(), &session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}
	if !session.Expired(c.now(), refreshLeeway) {
		return &session, nil
	}

	refreshed, err := c.auth.Refresh(ctx, session.RefreshToken)
	if err != nil {
		if clearErr := c.ClearStoredSession(ctx); clearErr != nil {
			c.log.Error("failed to clear stale session", sl.Err(clearErr))
		}
		c.notify(ctx, models.AuthChange{Event: models.EventSignedOut})
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.persist(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.notify(ctx, models.AuthChange{Event: models.EventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// OnAuthStateChange подписывает fn на уведомления устройства. fn вызывается
// последовательно в отдельной горутине. Возвращает функцию отписки.
func (c *Client) OnAuthStateChange(ctx context.Context, fn func(models.AuthChange)) (func(), error) {
	const op = "backend.OnAuthStateChange"

	sub, err := c.store.Subscribe(ctx, c.channel())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	go func() {
		for payload := range sub.Payloads {
			var change models.AuthChange
			if err := json.Unmarshal(payload, &change); err != nil {
				c.log.Warn("malformed auth notification", sl.Err(err))
				continue
			}
			fn(change)
		}
	}()
	return func() {
		if err := sub.Close(); err != nil {
			c.log.Warn("failed to close auth subscription", sl.Err(err))
		}
	}, nil
}

// SignInWithPassword входит по паролю, сохраняет сессию и уведомляет SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.User, error) {
	const op = "backend.SignInWithPassword"

	session, err := c.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.persist(ctx, session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.notify(ctx, models.AuthChange{Event: models.EventSignedIn, Session: session})
	u := session.User
	return &u, nil
}

// SignUp регистрирует пользователя. Сессия не создается до подтверждения email.
func (c *Client) SignUp(ctx context.Context, params models.SignUpParams) error {
	if _, err := c.auth.SignUp(ctx, params); err != nil {
		return fmt.Errorf("backend.SignUp: %w", err)
	}
	return nil
}

// SignOut отзывает refresh-токен на бэкенде и уведомляет SIGNED_OUT.
func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	if err := c.auth.SignOut(ctx, refreshToken); err != nil {
		return fmt.Errorf("backend.SignOut: %w", err)
	}
	c.notify(ctx, models.AuthChange{Event: models.EventSignedOut})
	return nil
}

// ClearStoredSession удаляет сохраненную сессию устройства.
func (c *Client) ClearStoredSession(ctx context.Context) error {
	if err := c.store.Invalidate(ctx, c.storageKey()); err != nil {
		return fmt.Errorf("backend.ClearStoredSession: %w", err)
	}
	return nil
}

func (c *Client) persist(ctx context.Context, session *models.Session) error {
	return c.store.Set(ctx, c.storageKey(), session, c.sessionTTL)
}

func (c *Client) notify(ctx context.Context, change models.AuthChange) {
	if err := c.store.Publish(ctx, c.channel(), change); err != nil {
		c.log.Error("failed to publish auth notification",
			slog.String("event", string(change.Event)), sl.Err(err))
	}
}
