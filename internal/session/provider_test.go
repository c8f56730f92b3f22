package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

type fakeBackend struct {
	mu           sync.Mutex
	listener     func(models.AuthChange)
	session      *models.Session
	sessionErr   error
	sessionGate  chan struct{}
	subscribeErr  error
	subscribeGate chan struct{}
	unsubscribed  bool

	signInErr    error
	signUps      []models.SignUpParams
	clearCalls   int
	signOutErr   error
	signOutGate  chan struct{}
	signOutCalls chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{signOutCalls: make(chan string, 4)}
}

func (f *fakeBackend) GetSession(ctx context.Context) (*models.Session, error) {
	if f.sessionGate != nil {
		select {
		case <-f.sessionGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.session, f.sessionErr
}

func (f *fakeBackend) OnAuthStateChange(_ context.Context, fn func(models.AuthChange)) (func(), error) {
	if f.subscribeGate != nil {
		<-f.subscribeGate
	}
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeBackend) emit(change models.AuthChange) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	fn(change)
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, _ string) (*models.User, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	sess := testSession(email)
	go f.emit(models.AuthChange{Event: models.EventSignedIn, Session: sess})
	return &sess.User, nil
}

func (f *fakeBackend) SignUp(_ context.Context, params models.SignUpParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUps = append(f.signUps, params)
	return nil
}

func (f *fakeBackend) SignOut(_ context.Context, refreshToken string) error {
	if f.signOutGate != nil {
		<-f.signOutGate
	}
	f.signOutCalls <- refreshToken
	return f.signOutErr
}

func (f *fakeBackend) ClearStoredSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	return nil
}

type fakeRoles struct {
	mu     sync.Mutex
	admins map[string]bool
	calls  []string
}

func (r *fakeRoles) IsAdmin(_ context.Context, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
	return r.admins[userID]
}

func (r *fakeRoles) callsFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == userID {
			n++
		}
	}
	return n
}

func startProvider(t *testing.T, backend *fakeBackend, roles *fakeRoles) *Provider {
	t.Helper()
	p := NewProvider(backend, roles, sl.Discard())
	require.NoError(t, p.Start())
	t.Cleanup(p.Close)
	return p
}

func waitLoaded(t *testing.T, p *Provider) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := p.Store().WaitLoaded(ctx)
	require.NoError(t, err)
	return st
}

func TestProvider_StartupWithoutSession(t *testing.T) {
	p := startProvider(t, newFakeBackend(), &fakeRoles{})

	st := waitLoaded(t, p)
	assert.Nil(t, st.User)
	assert.Nil(t, st.Session)
	assert.False(t, st.IsAdmin)
}

func TestProvider_StartupWithAdminSession(t *testing.T) {
	backend := newFakeBackend()
	backend.session = testSession("admin-1")
	roles := &fakeRoles{admins: map[string]bool{"admin-1": true}}

	p := startProvider(t, backend, roles)

	st := waitLoaded(t, p)
	require.NotNil(t, st.User)
	assert.Equal(t, "admin-1", st.User.ID)
	assert.True(t, st.IsAdmin)
	assert.Equal(t, 1, roles.callsFor("admin-1"))
}

func TestProvider_StartupFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.sessionErr = errors.New("network down")

	p := startProvider(t, backend, &fakeRoles{})

	st := waitLoaded(t, p)
	assert.Nil(t, st.User)
	assert.False(t, st.Loading)
}

func TestProvider_StartSubscribeError(t *testing.T) {
	backend := newFakeBackend()
	backend.subscribeErr = errors.New("redis down")

	p := NewProvider(backend, &fakeRoles{}, sl.Discard())
	assert.Error(t, p.Start())
	assert.Error(t, p.Start())
	assert.True(t, p.State().Loading)
}

func TestProvider_Notifications(t *testing.T) {
	backend := newFakeBackend()
	roles := &fakeRoles{admins: map[string]bool{"admin-1": true}}
	p := startProvider(t, backend, roles)
	waitLoaded(t, p)

	backend.emit(models.AuthChange{Event: models.EventSignedIn, Session: testSession("admin-1")})
	st := p.State()
	require.NotNil(t, st.User)
	assert.True(t, st.IsAdmin)
	assert.False(t, st.Loading)

	// сессия истекла: признак администратора сбрасывается без проверки роли
	backend.emit(models.AuthChange{Event: models.EventSignedOut})
	st = p.State()
	assert.Nil(t, st.User)
	assert.False(t, st.IsAdmin)
	assert.Equal(t, 1, roles.callsFor("admin-1"))

	backend.emit(models.AuthChange{Event: models.EventSignedIn, Session: testSession("user-1")})
	st = p.State()
	assert.Equal(t, "user-1", st.User.ID)
	assert.False(t, st.IsAdmin)
}

// gatedRoles задерживает проверку роли пользователя slow до release.
type gatedRoles struct {
	admins  map[string]bool
	slow    string
	release chan struct{}
}

func (r *gatedRoles) IsAdmin(ctx context.Context, userID string) bool {
	if userID == r.slow {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return r.admins[userID]
}

func TestProvider_UserSwitchDropsAdminDuringRoleLookup(t *testing.T) {
	backend := newFakeBackend()
	roles := &gatedRoles{admins: map[string]bool{"admin-a": true}, slow: "user-b", release: make(chan struct{})}
	p := NewProvider(backend, roles, sl.Discard())
	require.NoError(t, p.Start())
	t.Cleanup(p.Close)
	waitLoaded(t, p)

	backend.emit(models.AuthChange{Event: models.EventSignedIn, Session: testSession("admin-a")})
	require.True(t, p.State().IsAdmin)

	done := make(chan struct{})
	go func() {
		defer close(done)
		backend.emit(models.AuthChange{Event: models.EventSignedIn, Session: testSession("user-b")})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := p.Store().WaitFor(ctx, func(s State) bool { return s.User != nil && s.User.ID == "user-b" })
	require.NoError(t, err)
	assert.False(t, st.IsAdmin, "роль предыдущего пользователя не переносится")

	close(roles.release)
	<-done
	assert.False(t, p.State().IsAdmin)
}

func TestProvider_StaleStartupIgnored(t *testing.T) {
	backend := newFakeBackend()
	backend.session = testSession("stale")
	backend.sessionGate = make(chan struct{})
	roles := &fakeRoles{}

	p := startProvider(t, backend, roles)

	backend.emit(models.AuthChange{Event: models.EventSignedIn, Session: testSession("fresh")})
	close(backend.sessionGate)

	assert.Never(t, func() bool {
		u := p.State().User
		return u == nil || u.ID != "fresh"
	}, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 0, roles.callsFor("stale"))
}

func TestProvider_SignIn(t *testing.T) {
	backend := newFakeBackend()
	p := startProvider(t, backend, &fakeRoles{})
	waitLoaded(t, p)

	u, err := p.SignIn(context.Background(), "user-1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := p.Store().WaitFor(ctx, func(s State) bool { return s.User != nil })
	require.NoError(t, err)
	assert.Equal(t, "user-1", st.User.ID)

	backend.signInErr = errors.New("invalid login credentials")
	_, err = p.SignIn(context.Background(), "user-2", "bad")
	assert.ErrorContains(t, err, "invalid login credentials")
	assert.Equal(t, "user-1", p.State().User.ID)
}

func TestProvider_SignUpRedirectsToDashboard(t *testing.T) {
	backend := newFakeBackend()
	p := startProvider(t, backend, &fakeRoles{})

	require.NoError(t, p.SignUp(context.Background(), "new@example.com", "pw123456", "New User"))

	require.Len(t, backend.signUps, 1)
	assert.Equal(t, models.SignUpParams{
		Email:      "new@example.com",
		Password:   "pw123456",
		Name:       "New User",
		RedirectTo: "/dashboard",
	}, backend.signUps[0])
}

func TestProvider_SignOutClearsImmediately(t *testing.T) {
	for _, remoteErr := range []error{nil, errors.New("remote sign out failed")} {
		backend := newFakeBackend()
		backend.session = testSession("admin-1")
		backend.signOutErr = remoteErr
		backend.signOutGate = make(chan struct{})
		p := startProvider(t, backend, &fakeRoles{admins: map[string]bool{"admin-1": true}})
		require.True(t, waitLoaded(t, p).IsAdmin)

		done := make(chan struct{})
		go func() {
			p.SignOut()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("sign out blocked on the remote call")
		}

		assert.Equal(t, State{}, p.State())
		assert.Equal(t, 1, backend.clearCalls)

		close(backend.signOutGate)
		select {
		case token := <-backend.signOutCalls:
			assert.Equal(t, "refresh-admin-1", token)
		case <-time.After(time.Second):
			t.Fatal("remote sign out was not requested")
		}
		assert.Equal(t, State{}, p.State())
	}
}

func TestProvider_Close(t *testing.T) {
	backend := newFakeBackend()
	p := NewProvider(backend, &fakeRoles{}, sl.Discard())
	require.NoError(t, p.Start())

	p.Close()
	p.Close()
	assert.True(t, backend.unsubscribed)
}
