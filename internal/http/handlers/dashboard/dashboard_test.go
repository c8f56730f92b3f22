package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
	"github.com/magabrotheeeer/auto-trigger/internal/session/sessiontest"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CountContacts(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockService) MessageStats(ctx context.Context, userID string) (models.MessageStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.MessageStats), args.Error(1)
}

func (m *MockService) GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*models.UserSettings)
	return s, args.Error(1)
}

type body struct {
	Status string `json:"status"`
	Data   struct {
		Data Summary `json:"data"`
	} `json:"data"`
}

func TestDashboard(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	expired := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	user := &models.User{ID: "u1", Email: "ana@example.com"}

	tests := []struct {
		name         string
		setupMock    func(*MockService)
		expectedCode int
		check        func(t *testing.T, s Summary)
	}{
		{
			name: "активный аккаунт",
			setupMock: func(m *MockService) {
				m.On("CountContacts", mock.Anything, "u1").Return(42, nil)
				m.On("MessageStats", mock.Anything, "u1").Return(models.MessageStats{Day: 2, Week: 9, Month: 47}, nil)
				m.On("GetUserSettings", mock.Anything, "u1").Return(&models.UserSettings{IsActive: true, PlanExpiry: &expiry}, nil)
			},
			expectedCode: http.StatusOK,
			check: func(t *testing.T, s Summary) {
				assert.Equal(t, 42, s.Contacts)
				assert.Equal(t, 2, s.SentToday)
				assert.Equal(t, 9, s.SentWeek)
				assert.Equal(t, 47, s.SentMonth)
				assert.Equal(t, 2, s.DailyAverage)
				assert.Equal(t, 12, s.WeeklyAverage)
				assert.True(t, s.AccountActive)
				assert.Equal(t, "ana@example.com", s.Email)
			},
		},
		{
			name: "план истек",
			setupMock: func(m *MockService) {
				m.On("CountContacts", mock.Anything, "u1").Return(0, nil)
				m.On("MessageStats", mock.Anything, "u1").Return(models.MessageStats{}, nil)
				m.On("GetUserSettings", mock.Anything, "u1").Return(&models.UserSettings{IsActive: true, PlanExpiry: &expired}, nil)
			},
			expectedCode: http.StatusOK,
			check: func(t *testing.T, s Summary) {
				assert.False(t, s.AccountActive)
				assert.Zero(t, s.DailyAverage)
			},
		},
		{
			name: "нет настроек",
			setupMock: func(m *MockService) {
				m.On("CountContacts", mock.Anything, "u1").Return(1, nil)
				m.On("MessageStats", mock.Anything, "u1").Return(models.MessageStats{Month: 15}, nil)
				m.On("GetUserSettings", mock.Anything, "u1").Return(nil, storage.ErrNotFound)
			},
			expectedCode: http.StatusOK,
			check: func(t *testing.T, s Summary) {
				assert.False(t, s.AccountActive)
				assert.Equal(t, 1, s.DailyAverage)
				assert.Equal(t, 4, s.WeeklyAverage)
			},
		},
		{
			name: "ошибка базы",
			setupMock: func(m *MockService) {
				m.On("CountContacts", mock.Anything, "u1").Return(0, errors.New("db error"))
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockService)
			tt.setupMock(m)
			h := New(sl.Discard(), m)
			h.now = func() time.Time { return now }

			p, _ := sessiontest.NewProvider(t, user, false)
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req = req.WithContext(session.WithProvider(req.Context(), p))
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.check != nil {
				var b body
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))
				tt.check(t, b.Data.Data)
			}
			m.AssertExpectations(t)
		})
	}
}
