// Package auth реализует аутентификационную часть бэкенда: регистрацию
// с подтверждением email, вход по паролю, обновление и отзыв сессий.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/jwt"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/password"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

var (
	// ErrInvalidCredentials — неверный email или пароль.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailNotConfirmed — вход до подтверждения email.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrUserExists — email уже зарегистрирован.
	ErrUserExists = errors.New("user already registered")
	// ErrInvalidRefreshToken — refresh-токен неизвестен, отозван или истек.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

const refreshKeyPrefix = "refresh:"

// UserRepository описывает хранилище учетных записей.
type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ConfirmEmail(ctx context.Context, userID string) error
}

// TokenStore хранит refresh-токены с TTL.
type TokenStore interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher отправляет задания в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Settings — параметры сервиса.
type Settings struct {
	RefreshTTL          time.Duration
	PublicURL           string
	RequireConfirmation bool
}

// Service отвечает за регистрацию и сессии пользователей.
type Service struct {
	users     UserRepository
	tokens    TokenStore
	publisher Publisher
	jwtMaker  jwt.Maker
	settings  Settings
}

// New создает Service.
func New(users UserRepository, tokens TokenStore, publisher Publisher, jwtMaker jwt.Maker, settings Settings) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		jwtMaker:  jwtMaker,
		settings:  settings,
	}
}

// SignInWithPassword проверяет пароль и выпускает новую сессию.
func (s *Service) SignInWithPassword(ctx context.Context, email, rawPassword string) (*models.Session, error) {
	const op = "auth.SignInWithPassword"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.settings.RequireConfirmation && user.EmailConfirmedAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailNotConfirmed)
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// SignUp регистрирует пользователя. Если требуется подтверждение, в очередь
// уходит письмо со ссылкой, ведущей после подтверждения на params.RedirectTo.
func (s *Service) SignUp(ctx context.Context, params models.SignUpParams) (*models.User, error) {
	const op = "auth.SignUp"

	hash, err := password.GetHash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.CreateUser(ctx, normalizeEmail(params.Email), hash, params.Name)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.settings.RequireConfirmation {
		if err := s.users.ConfirmEmail(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return user, nil
	}

	token, err := s.jwtMaker.GenerateConfirmToken(user.ID, user.Email, params.RedirectTo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg := models.Confirmation{
		Email: user.Email,
		Name:  params.Name,
		Link:  s.confirmLink(token),
	}
	if err := s.publisher.Publish(ctx, rabbitmq.QueueConfirmation, msg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Confirm подтверждает email по токену из письма и возвращает адрес редиректа.
func (s *Service) Confirm(ctx context.Context, token string) (string, error) {
	const op = "auth.Confirm"

	claims, err := s.jwtMaker.ParseToken(token, jwt.PurposeConfirm)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.ConfirmEmail(ctx, claims.Subject); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return claims.RedirectTo, nil
}

// Refresh обменивает refresh-токен на новую сессию. Старый токен отзывается.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "auth.Refresh"

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}
	var userID string
	found, err := s.tokens.Get(ctx, refreshKeyPrefix+refreshToken, &userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.Invalidate(ctx, refreshKeyPrefix+refreshToken); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// SignOut отзывает refresh-токен сессии.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Invalidate(ctx, refreshKeyPrefix+refreshToken); err != nil {
		return fmt.Errorf("auth.SignOut: %w", err)
	}
	return nil
}

// User возвращает пользователя по access-токену.
func (s *Service) User(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "auth.User"

	claims, err := s.jwtMaker.ParseToken(accessToken, jwt.PurposeAccess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Service) issueSession(ctx context.Context, user *models.User) (*models.Session, error) {
	access, expiresAt, err := s.jwtMaker.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()
	if err := s.tokens.Set(ctx, refreshKeyPrefix+refresh, user.ID, s.settings.RefreshTTL); err != nil {
		return nil, err
	}

	u := *user
	u.PasswordHash = ""
	return &models.Session{
		User:         u,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) confirmLink(token string) string {
	return strings.TrimRight(s.settings.PublicURL, "/") + "/auth/confirm?token=" + url.QueryEscape(token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
