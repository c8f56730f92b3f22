package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/metrics"
)

type RoleLookupMock struct {
	mock.Mock
}

func (m *RoleLookupMock) UserRoles(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestRoleResolver_IsAdmin(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		err   error
		want  bool
	}{
		{name: "admin", roles: []string{"admin"}, want: true},
		{name: "moderator", roles: []string{"moderator"}},
		{name: "user", roles: []string{"user"}},
		{name: "no record", roles: []string{}},
		{name: "nil result", roles: nil},
		{name: "case differs", roles: []string{"Admin"}},
		{name: "multiple records", roles: []string{"admin", "admin"}},
		{name: "lookup error", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := new(RoleLookupMock)
			if tt.roles == nil {
				lookup.On("UserRoles", mock.Anything, "user-1").Return(nil, tt.err).Once()
			} else {
				lookup.On("UserRoles", mock.Anything, "user-1").Return(tt.roles, tt.err).Once()
			}

			r := NewRoleResolver(lookup, time.Second, sl.Discard())
			assert.Equal(t, tt.want, r.IsAdmin(context.Background(), "user-1"))
			lookup.AssertNumberOfCalls(t, "UserRoles", 1)
		})
	}
}

func TestRoleResolver_Timeout(t *testing.T) {
	lookup := new(RoleLookupMock)
	release := make(chan struct{})
	lookup.On("UserRoles", mock.Anything, "slow").
		Run(func(mock.Arguments) { <-release }).
		Return([]string{"admin"}, nil).Once()

	before := testutil.ToFloat64(metrics.RoleResolutions.WithLabelValues(metrics.RoleTimeout))

	r := NewRoleResolver(lookup, 50*time.Millisecond, sl.Discard())
	start := time.Now()
	got := r.IsAdmin(context.Background(), "slow")

	assert.False(t, got)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RoleResolutions.WithLabelValues(metrics.RoleTimeout)))

	// поздний результат отбрасывается без блокировки горутины запроса
	close(release)
}

func TestRoleResolver_RecoversPanic(t *testing.T) {
	lookup := new(RoleLookupMock)
	lookup.On("UserRoles", mock.Anything, "boom").
		Run(func(mock.Arguments) { panic("driver exploded") }).
		Return(nil, nil).Once()

	r := NewRoleResolver(lookup, time.Second, sl.Discard())
	assert.NotPanics(t, func() {
		assert.False(t, r.IsAdmin(context.Background(), "boom"))
	})
}

func TestNewRoleResolver_DefaultTimeout(t *testing.T) {
	r := NewRoleResolver(new(RoleLookupMock), 0, sl.Discard())
	assert.Equal(t, DefaultRoleTimeout, r.timeout)
	assert.Equal(t, 5*time.Second, DefaultRoleTimeout)
}
