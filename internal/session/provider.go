package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// SignUpRedirect — страница, на которую ведет ссылка подтверждения регистрации.
const SignUpRedirect = "/dashboard"

const signOutTimeout = 10 * time.Second

// Backend — клиент бэкенда устройства.
type Backend interface {
	GetSession(ctx context.Context) (*models.Session, error)
	OnAuthStateChange(ctx context.Context, fn func(models.AuthChange)) (func(), error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, params models.SignUpParams) error
	SignOut(ctx context.Context, refreshToken string) error
	ClearStoredSession(ctx context.Context) error
}

// AdminChecker определяет роль пользователя.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) bool
}

// Provider ведет состояние сессии устройства: загружает текущую сессию,
// применяет уведомления бэкенда и выполняет вход, регистрацию и выход.
type Provider struct {
	backend Backend
	roles   AdminChecker
	store   *Store
	log     *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	startOnce   sync.Once
	startErr    error
	closeOnce   sync.Once
	unsubscribe func()
}

// NewProvider создает провайдер. До вызова Start состояние находится в загрузке.
func NewProvider(backend Backend, roles AdminChecker, log *slog.Logger) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		backend: backend,
		roles:   roles,
		store:   NewStore(),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Store возвращает хранилище состояния провайдера.
func (p *Provider) Store() *Store {
	return p.store
}

// State возвращает текущий снимок состояния.
func (p *Provider) State() State {
	return p.store.Snapshot()
}

// Start подписывается на уведомления и запускает загрузку текущей сессии.
// Подписка живет до Close. Повторные вызовы возвращают результат первого.
func (p *Provider) Start() error {
	p.startOnce.Do(func() {
		unsubscribe, err := p.backend.OnAuthStateChange(p.ctx, p.handleChange)
		if err != nil {
			p.startErr = fmt.Errorf("session.Provider.Start: %w", err)
			return
		}
		p.unsubscribe = unsubscribe
		go p.loadInitial()
	})
	return p.startErr
}

func (p *Provider) loadInitial() {
	const op = "session.Provider.loadInitial"
	log := p.log.With(slog.String("op", op))

	sess, err := p.backend.GetSession(p.ctx)
	if err != nil {
		log.Error("failed to get initial session", sl.Err(err))
		sess = nil
	}
	if p.store.setSession(sess, false) && sess != nil {
		p.store.setAdmin(sess.User.ID, p.roles.IsAdmin(p.ctx, sess.User.ID))
	} else if sess != nil {
		log.Debug("initial session superseded by notification")
	}
	p.store.finishLoading()
}

func (p *Provider) handleChange(change models.AuthChange) {
	p.log.Debug("auth event", slog.String("event", string(change.Event)))

	p.store.setSession(change.Session, true)
	if change.Session != nil {
		userID := change.Session.User.ID
		p.store.setAdmin(userID, p.roles.IsAdmin(p.ctx, userID))
	}
	p.store.finishLoading()
}

// SignIn входит по паролю и возвращает вошедшего пользователя.
// Состояние обновляется уведомлением SIGNED_IN.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	u, err := p.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("session.Provider.SignIn: %w", err)
	}
	return u, nil
}

// SignUp регистрирует пользователя с именем displayName; ссылка подтверждения
// ведет на SignUpRedirect.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) error {
	err := p.backend.SignUp(ctx, models.SignUpParams{
		Email:      email,
		Password:   password,
		Name:       displayName,
		RedirectTo: SignUpRedirect,
	})
	if err != nil {
		return fmt.Errorf("session.Provider.SignUp: %w", err)
	}
	return nil
}

// SignOut синхронно очищает состояние и сохраненную сессию, затем отзывает
// сессию на бэкенде в фоне. Ошибки только логируются.
func (p *Provider) SignOut() {
	const op = "session.Provider.SignOut"
	log := p.log.With(slog.String("op", op))

	var refreshToken string
	if s := p.store.Snapshot().Session; s != nil {
		refreshToken = s.RefreshToken
	}
	p.store.clear()

	ctx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
	if err := p.backend.ClearStoredSession(ctx); err != nil {
		log.Error("failed to remove stored session", sl.Err(err))
	}
	go func() {
		defer cancel()
		if err := p.backend.SignOut(ctx, refreshToken); err != nil {
			log.Error("backend sign out failed", sl.Err(err))
		}
	}()
}

// Close отменяет подписку и фоновые операции провайдера.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.unsubscribe != nil {
			p.unsubscribe()
		}
	})
}
