package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

func testSession(userID string) *models.Session {
	return &models.Session{
		User:         models.User{ID: userID, Email: userID + "@example.com"},
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestStore_InitialState(t *testing.T) {
	s := NewStore()
	assert.Equal(t, State{Loading: true}, s.Snapshot())
}

func TestStore_SetSessionAndAdmin(t *testing.T) {
	s := NewStore()

	require.True(t, s.setSession(testSession("a"), true))
	s.setAdmin("a", true)
	s.finishLoading()

	st := s.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, "a", st.User.ID)
	assert.True(t, st.IsAdmin)
	assert.False(t, st.Loading)

	// результат проверки роли для другого пользователя не применяется
	s.setAdmin("b", false)
	assert.True(t, s.Snapshot().IsAdmin)

	require.True(t, s.setSession(nil, true))
	st = s.Snapshot()
	assert.Nil(t, st.User)
	assert.Nil(t, st.Session)
	assert.False(t, st.IsAdmin)
}

func TestStore_UserSwitchResetsAdmin(t *testing.T) {
	s := NewStore()
	require.True(t, s.setSession(testSession("admin-a"), true))
	s.setAdmin("admin-a", true)

	// обновление токена того же пользователя сохраняет роль
	require.True(t, s.setSession(testSession("admin-a"), true))
	assert.True(t, s.Snapshot().IsAdmin)

	// другой пользователь не администратор до своей проверки роли
	require.True(t, s.setSession(testSession("user-b"), true))
	st := s.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, "user-b", st.User.ID)
	assert.False(t, st.IsAdmin)
}

func TestStore_StartupDoesNotOverrideNotification(t *testing.T) {
	s := NewStore()

	require.True(t, s.setSession(testSession("fresh"), true))
	assert.False(t, s.setSession(testSession("stale"), false))
	assert.Equal(t, "fresh", s.Snapshot().User.ID)

	// без уведомления стартовая загрузка применяется
	other := NewStore()
	assert.True(t, other.setSession(testSession("startup"), false))
	assert.True(t, other.setSession(testSession("notified"), true))
	assert.Equal(t, "notified", other.Snapshot().User.ID)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.setSession(testSession("a"), true)
	s.setAdmin("a", true)

	s.clear()
	assert.Equal(t, State{}, s.Snapshot())
	assert.False(t, s.setSession(testSession("late"), false))
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()

	first := <-ch
	assert.True(t, first.Loading)

	s.setSession(testSession("a"), true)
	s.finishLoading()

	// медленный наблюдатель получает последний снимок
	latest := <-ch
	assert.False(t, latest.Loading)
	assert.Equal(t, "a", latest.User.ID)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	assert.NotPanics(t, func() { s.setSession(nil, true) })
}

func TestStore_WaitLoaded(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.WaitLoaded(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.setSession(testSession("a"), true)
		s.finishLoading()
	}()

	st, err := s.WaitLoaded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", st.User.ID)
}
