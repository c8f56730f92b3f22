// Package sessiontest предоставляет провайдер сессии с управляемым бэкендом
// для тестов HTTP-обработчиков.
package sessiontest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/auth"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

// Backend — бэкенд в памяти. Вход с паролем Password публикует SIGNED_IN,
// выход публикует SIGNED_OUT.
type Backend struct {
	Password  string
	SignInErr error
	SignUpErr error

	mu       sync.Mutex
	session  *models.Session
	listener func(models.AuthChange)
	signUps  []models.SignUpParams
	signOuts int
}

// GetSession возвращает сохраненную сессию.
func (b *Backend) GetSession(context.Context) (*models.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, nil
}

// OnAuthStateChange запоминает единственного слушателя.
func (b *Backend) OnAuthStateChange(_ context.Context, fn func(models.AuthChange)) (func(), error) {
	b.mu.Lock()
	b.listener = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.listener = nil
		b.mu.Unlock()
	}, nil
}

// SignInWithPassword входит пользователем с адресом email.
func (b *Backend) SignInWithPassword(_ context.Context, email, password string) (*models.User, error) {
	if b.SignInErr != nil {
		return nil, b.SignInErr
	}
	if password != b.Password {
		return nil, fmt.Errorf("sessiontest.SignInWithPassword: %w", auth.ErrInvalidCredentials)
	}
	sess := NewSession(&models.User{ID: "user-" + email, Email: email})
	b.mu.Lock()
	b.session = sess
	b.mu.Unlock()
	b.emit(models.AuthChange{Event: models.EventSignedIn, Session: sess})
	return &sess.User, nil
}

// SignUp запоминает параметры регистрации.
func (b *Backend) SignUp(_ context.Context, params models.SignUpParams) error {
	if b.SignUpErr != nil {
		return b.SignUpErr
	}
	b.mu.Lock()
	b.signUps = append(b.signUps, params)
	b.mu.Unlock()
	return nil
}

// SignOut публикует SIGNED_OUT.
func (b *Backend) SignOut(context.Context, string) error {
	b.mu.Lock()
	b.signOuts++
	b.mu.Unlock()
	b.emit(models.AuthChange{Event: models.EventSignedOut})
	return nil
}

// ClearStoredSession удаляет сохраненную сессию.
func (b *Backend) ClearStoredSession(context.Context) error {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	return nil
}

// SignUps возвращает принятые регистрации.
func (b *Backend) SignUps() []models.SignUpParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.SignUpParams(nil), b.signUps...)
}

// SignOuts возвращает число вызовов SignOut.
func (b *Backend) SignOuts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signOuts
}

func (b *Backend) emit(change models.AuthChange) {
	b.mu.Lock()
	fn := b.listener
	b.mu.Unlock()
	if fn != nil {
		fn(change)
	}
}

// Admins считает администраторами перечисленных пользователей.
type Admins map[string]bool

// IsAdmin реализует session.AdminChecker.
func (a Admins) IsAdmin(_ context.Context, userID string) bool {
	return a[userID]
}

// NewSession создает действующую сессию пользователя.
func NewSession(u *models.User) *models.Session {
	return &models.Session{
		User:         *u,
		AccessToken:  "access-" + u.ID,
		RefreshToken: "refresh-" + u.ID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// NewProvider запускает провайдер, у которого уже есть сессия user
// (nil — без пользователя), и ждет окончания загрузки.
func NewProvider(t *testing.T, user *models.User, isAdmin bool) (*session.Provider, *Backend) {
	t.Helper()

	b := &Backend{Password: "password"}
	admins := Admins{}
	if user != nil {
		b.session = NewSession(user)
		admins[user.ID] = isAdmin
	}

	p := session.NewProvider(b, admins, sl.Discard())
	require.NoError(t, p.Start())
	t.Cleanup(p.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.Store().WaitLoaded(ctx)
	require.NoError(t, err)
	return p, b
}
