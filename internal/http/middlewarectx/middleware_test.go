package middlewarectx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/metrics"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
	"github.com/magabrotheeeer/auto-trigger/internal/session/sessiontest"
)

type providersStub struct {
	provider *session.Provider
	err      error
	devices  []string
}

func (s *providersStub) Get(device string) (*session.Provider, error) {
	s.devices = append(s.devices, device)
	return s.provider, s.err
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestDeviceMiddleware_IssuesCookie(t *testing.T) {
	p, _ := sessiontest.NewProvider(t, nil, false)
	providers := &providersStub{provider: p}

	var fromCtx *session.Provider
	h := middlewarectx.DeviceMiddleware(providers, sl.Discard(), false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = session.MustFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middlewarectx.DeviceCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	_, err := uuid.Parse(cookies[0].Value)
	assert.NoError(t, err)
	assert.Equal(t, []string{cookies[0].Value}, providers.devices)
	assert.Same(t, p, fromCtx)
}

func TestDeviceMiddleware_ReusesCookie(t *testing.T) {
	p, _ := sessiontest.NewProvider(t, nil, false)
	providers := &providersStub{provider: p}
	device := uuid.NewString()

	h := middlewarectx.DeviceMiddleware(providers, sl.Discard(), false)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middlewarectx.DeviceCookie, Value: device})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Empty(t, rr.Result().Cookies())
	assert.Equal(t, []string{device}, providers.devices)
}

func TestDeviceMiddleware_ReplacesMalformedCookie(t *testing.T) {
	p, _ := sessiontest.NewProvider(t, nil, false)
	providers := &providersStub{provider: p}

	h := middlewarectx.DeviceMiddleware(providers, sl.Discard(), false)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middlewarectx.DeviceCookie, Value: "../../etc"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Len(t, rr.Result().Cookies(), 1)
	assert.NotEqual(t, "../../etc", providers.devices[0])
}

func TestDeviceMiddleware_ProviderError(t *testing.T) {
	providers := &providersStub{err: errors.New("redis down")}
	called := false

	h := middlewarectx.DeviceMiddleware(providers, sl.Discard(), false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "session service unavailable")
	assert.False(t, called)
}

func withProvider(p *session.Provider, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(session.WithProvider(r.Context(), p)))
	})
}

func TestRequireUser(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		wantCode int
	}{
		{name: "signed in", user: &models.User{ID: "u1", Email: "a@b.c"}, wantCode: http.StatusOK},
		{name: "anonymous", wantCode: http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := sessiontest.NewProvider(t, tt.user, false)
			h := withProvider(p, middlewarectx.RequireUser(sl.Discard())(http.HandlerFunc(okHandler)))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contacts", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode == http.StatusSeeOther {
				assert.Equal(t, middlewarectx.LoginPath, rr.Header().Get("Location"))
			}
		})
	}
}

func TestRequireUser_CarriesRequestState(t *testing.T) {
	p, _ := sessiontest.NewProvider(t, &models.User{ID: "u1", Email: "a@b.c"}, true)

	var (
		userID  string
		isAdmin bool
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// выход на другой вкладке во время запроса
		p.SignOut()
		userID = view.UserID(r)
		isAdmin = view.New(r, "Usuários", nil).IsAdmin
		w.WriteHeader(http.StatusOK)
	})
	h := withProvider(p, middlewarectx.RequireUser(sl.Discard())(middlewarectx.RequireAdmin(sl.Discard())(next)))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", userID)
	assert.True(t, isAdmin)
	assert.Nil(t, p.State().User)
}

func TestRequireAdmin(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@b.c"}

	tests := []struct {
		name     string
		isAdmin  bool
		wantCode int
	}{
		{name: "admin", isAdmin: true, wantCode: http.StatusOK},
		{name: "regular user", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := sessiontest.NewProvider(t, user, tt.isAdmin)
			h := withProvider(p, middlewarectx.RequireAdmin(sl.Discard())(http.HandlerFunc(okHandler)))

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := middlewarectx.NewIPLimiter(0.001, 2)
	h := middlewarectx.RateLimitMiddleware(limiter, sl.Discard())(http.HandlerFunc(okHandler))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}

func TestMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middlewarectx.MetricsMiddleware)
	r.Get("/contacts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/contacts/{id}", "418")
	before := testutil.ToFloat64(counter)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contacts/42", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
