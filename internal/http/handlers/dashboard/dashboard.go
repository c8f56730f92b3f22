// Package dashboard реализует сводную страницу пользователя.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

// Service — источник данных сводки.
type Service interface {
	CountContacts(ctx context.Context, userID string) (int, error)
	MessageStats(ctx context.Context, userID string) (models.MessageStats, error)
	GetUserSettings(ctx context.Context, userID string) (*models.UserSettings, error)
}

// Summary — данные страницы.
type Summary struct {
	Contacts      int        `json:"contacts"`
	SentToday     int        `json:"sent_today"`
	SentWeek      int        `json:"sent_week"`
	SentMonth     int        `json:"sent_month"`
	DailyAverage  int        `json:"daily_average"`
	WeeklyAverage int        `json:"weekly_average"`
	AccountActive bool       `json:"account_active"`
	PlanExpiry    *time.Time `json:"plan_expiry,omitempty"`
	Email         string     `json:"email"`
}

// Handler обслуживает страницу сводки.
type Handler struct {
	log     *slog.Logger
	service Service
	now     func() time.Time
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		now:     time.Now,
	}
}

// ServeHTTP godoc
// @Summary Сводка пользователя
// @Description Число контактов, отправки за день, 7 и 30 дней, средние и статус аккаунта.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.ErrorResponse
// @Router /dashboard [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	page := view.New(r, "Dashboard", nil)
	userID := page.User.ID

	contacts, err := h.service.CountContacts(r.Context(), userID)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to count contacts", err)
		return
	}
	stats, err := h.service.MessageStats(r.Context(), userID)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to load message stats", err)
		return
	}

	summary := Summary{
		Contacts:      contacts,
		SentToday:     stats.Day,
		SentWeek:      stats.Week,
		SentMonth:     stats.Month,
		DailyAverage:  int(math.Round(float64(stats.Month) / 30)),
		WeeklyAverage: int(math.Round(float64(stats.Month) / 4)),
		Email:         page.User.Email,
	}

	settings, err := h.service.GetUserSettings(r.Context(), userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Debug("user has no settings row")
	case err != nil:
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to load account status", err)
		return
	default:
		summary.AccountActive = settings.AccountActive(h.now())
		summary.PlanExpiry = settings.PlanExpiry
	}

	page.Data = summary
	view.Render(w, r, page)
}
