package messages

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
	"github.com/magabrotheeeer/auto-trigger/internal/session/sessiontest"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListCategories(ctx context.Context, userID string) ([]*models.Category, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).([]*models.Category)
	return res, args.Error(1)
}

func (m *MockService) ListMessages(ctx context.Context, userID string) ([]*models.Message, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).([]*models.Message)
	return res, args.Error(1)
}

func (m *MockService) CreateMessage(ctx context.Context, userID string, in models.MessageInput) (string, error) {
	args := m.Called(ctx, userID, in)
	return args.String(0), args.Error(1)
}

func (m *MockService) CountContactsByCategories(ctx context.Context, userID string, ids []string) (int, error) {
	args := m.Called(ctx, userID, ids)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func ptr(s string) *string { return &s }

const (
	cityID    = "0b0c6a1e-6f7c-4d8e-9a0b-1c2d3e4f5a61"
	companyID = "0b0c6a1e-6f7c-4d8e-9a0b-1c2d3e4f5a62"
	sectorID  = "0b0c6a1e-6f7c-4d8e-9a0b-1c2d3e4f5a63"
	foreignID = "0b0c6a1e-6f7c-4d8e-9a0b-1c2d3e4f5a69"
)

var testCategories = []*models.Category{
	{ID: cityID, Name: "Lisboa", Type: models.CategoryCity},
	{ID: companyID, Name: "Acme", Type: models.CategoryCompany, ParentID: ptr(cityID)},
	{ID: sectorID, Name: "Vendas", Type: models.CategorySector, ParentID: ptr(companyID)},
}

func newRequest(t *testing.T, method, body string) *http.Request {
	t.Helper()
	p, _ := sessiontest.NewProvider(t, &models.User{ID: "u1"}, false)
	req := httptest.NewRequest(method, "/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(session.WithProvider(req.Context(), p))
}

func TestPage(t *testing.T) {
	m := new(MockService)
	m.On("ListCategories", mock.Anything, "u1").Return(testCategories, nil)
	m.On("ListMessages", mock.Anything, "u1").Return([]*models.Message{
		{ID: "m1", Content: "Olá", CategoryIDs: []string{companyID}},
	}, nil)

	rr := httptest.NewRecorder()
	New(sl.Discard(), m, new(MockPublisher)).Page(rr, newRequest(t, http.MethodGet, ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"categories":["Lisboa - Acme"]`)
	assert.Contains(t, rr.Body.String(), `"label":"Lisboa - Acme - Vendas"`)
	assert.Contains(t, rr.Body.String(), `"min_delay_minutes":20`)
	m.AssertExpectations(t)
}

func TestSend(t *testing.T) {
	valid := `{"content":"Olá","delay_minutes":20,"delay_max_minutes":30,"category_ids":["` + cityID + `"]}`

	tests := []struct {
		name         string
		body         string
		setupMock    func(*MockService, *MockPublisher)
		expectedCode int
		expectedBody string
	}{
		{
			name: "успешная отправка с раскрытием потомков",
			body: valid,
			setupMock: func(m *MockService, p *MockPublisher) {
				m.On("ListCategories", mock.Anything, "u1").Return(testCategories, nil)
				m.On("CountContactsByCategories", mock.Anything, "u1", []string{cityID, companyID, sectorID}).Return(12, nil)
				m.On("CreateMessage", mock.Anything, "u1", mock.AnythingOfType("models.MessageInput")).Return("m2", nil)
				p.On("Publish", mock.Anything, rabbitmq.QueueDispatch, models.DispatchJob{MessageID: "m2", UserID: "u1"}).Return(nil)
				m.On("ListMessages", mock.Anything, "u1").Return([]*models.Message{}, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `Enviando para 12 contatos.`,
		},
		{
			name:         "пустой текст",
			body:         `{"content":"   ","delay_minutes":20,"delay_max_minutes":30,"category_ids":["` + cityID + `"]}`,
			setupMock:    func(_ *MockService, _ *MockPublisher) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `field Content is a required field`,
		},
		{
			name:         "задержка меньше 20 минут",
			body:         `{"content":"Olá","delay_minutes":10,"delay_max_minutes":30,"category_ids":["` + cityID + `"]}`,
			setupMock:    func(_ *MockService, _ *MockPublisher) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `field DelayMinutes is out of range (gte 20)`,
		},
		{
			name:         "максимум меньше минимума",
			body:         `{"content":"Olá","delay_minutes":30,"delay_max_minutes":25,"category_ids":["` + cityID + `"]}`,
			setupMock:    func(_ *MockService, _ *MockPublisher) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `field DelayMaxMinutes must not be less than DelayMinutes`,
		},
		{
			name: "больше пяти изображений",
			body: `{"content":"Olá","delay_minutes":20,"delay_max_minutes":20,"category_ids":["` + cityID + `"],` +
				`"image_urls":["http://a/1","http://a/2","http://a/3","http://a/4","http://a/5","http://a/6"]}`,
			setupMock:    func(_ *MockService, _ *MockPublisher) {},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `field ImageURLs must contain at most 5`,
		},
		{
			name:         "без категорий",
			body:         `{"content":"Olá","delay_minutes":20,"delay_max_minutes":20,"category_ids":[]}`,
			setupMock:    func(_ *MockService, _ *MockPublisher) {},
			expectedCode: http.StatusUnprocessableEntity,
		},
		{
			name: "чужая категория",
			body: `{"content":"Olá","delay_minutes":20,"delay_max_minutes":20,"category_ids":["` + foreignID + `"]}`,
			setupMock: func(m *MockService, _ *MockPublisher) {
				m.On("ListCategories", mock.Anything, "u1").Return(testCategories, nil)
			},
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: `"error":"category not found"`,
		},
		{
			name: "ошибка брокера",
			body: valid,
			setupMock: func(m *MockService, p *MockPublisher) {
				m.On("ListCategories", mock.Anything, "u1").Return(testCategories, nil)
				m.On("CountContactsByCategories", mock.Anything, "u1", mock.Anything).Return(3, nil)
				m.On("CreateMessage", mock.Anything, "u1", mock.Anything).Return("m2", nil)
				p.On("Publish", mock.Anything, rabbitmq.QueueDispatch, mock.Anything).Return(errors.New("channel closed"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `"error":"failed to schedule dispatch"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, p := new(MockService), new(MockPublisher)
			tt.setupMock(m, p)

			rr := httptest.NewRecorder()
			New(sl.Discard(), m, p).Send(rr, newRequest(t, http.MethodPost, tt.body))

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			m.AssertExpectations(t)
			p.AssertExpectations(t)
		})
	}
}
