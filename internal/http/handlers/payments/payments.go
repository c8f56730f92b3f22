// Package payments реализует административную страницу платежей.
package payments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

const dateLayout = "2006-01-02"

// Фильтр статуса.
const (
	StatusAll = "all"
)

// Service — хранилище платежей.
type Service interface {
	ListPayments(ctx context.Context) ([]*models.Payment, error)
	CreatePayment(ctx context.Context, userID string, amount float64, dueDate time.Time, planDuration int) (string, error)
	ConfirmPayment(ctx context.Context, paymentID string) error
	AdjustPlan(ctx context.Context, paymentID string, planDuration int) error
}

// Row — платеж с отображаемым статусом.
type Row struct {
	*models.Payment
	DisplayStatus string `json:"display_status"`
}

// List — данные страницы.
type List struct {
	Query    string `json:"query,omitempty"`
	Status   string `json:"status"`
	Payments []Row  `json:"payments"`
}

// Handler обслуживает страницу платежей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	now      func() time.Time
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Платежи всех пользователей
// @Description Неоплаченный платеж с прошедшим сроком отображается как overdue.
// @Tags Payments
// @Produce json
// @Param q query string false "Поиск по имени пользователя"
// @Param status query string false "all, paid, pending или overdue"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, h.logger(r, "handlers.payments.List"), "")
}

// Create godoc
// @Summary Регистрация платежа
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.PaymentInput true "Платеж"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /payments [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Create")

	var in models.PaymentInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}
	due, err := time.Parse(dateLayout, in.DueDate)
	if err != nil {
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "field DueDate must be a date in format YYYY-MM-DD", nil)
		return
	}

	id, err := h.service.CreatePayment(r.Context(), in.UserID, in.Amount, due, in.PlanDuration)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to register payment", err)
		return
	}

	log.Info("payment registered", slog.String("id", id))
	render.Status(r, http.StatusCreated)
	h.renderList(w, r, log, "Pagamento registrado")
}

// Confirm godoc
// @Summary Подтверждение оплаты
// @Description Отмечает платеж оплаченным, продлевает план пользователя и активирует аккаунт.
// @Tags Payments
// @Produce json
// @Param id path string true "ID платежа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Платеж не найден или уже оплачен"
// @Router /payments/{id}/confirm [post]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.Confirm")

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.ConfirmPayment(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			view.Fail(w, r, log, http.StatusNotFound, "payment not found or already paid", nil)
			return
		}
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to confirm payment", err)
		return
	}

	log.Info("payment confirmed", slog.String("id", id))
	h.renderList(w, r, log, "Pagamento confirmado")
}

// AdjustPlan godoc
// @Summary Изменение длительности плана
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "ID платежа"
// @Param request body models.PlanInput true "Длительность в месяцах"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /payments/{id}/plan [put]
func (h *Handler) AdjustPlan(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.payments.AdjustPlan")

	var in models.PlanInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.AdjustPlan(r.Context(), id, in.PlanDuration); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			view.Fail(w, r, log, http.StatusNotFound, "payment not found", nil)
			return
		}
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to update plan", err)
		return
	}

	log.Info("plan adjusted", slog.String("id", id), slog.Int("months", in.PlanDuration))
	h.renderList(w, r, log, "Plano atualizado")
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, log *slog.Logger, notice string) {
	status := r.URL.Query().Get("status")
	switch status {
	case "":
		status = StatusAll
	case StatusAll, models.PaymentPaid, models.PaymentPending, models.PaymentOverdue:
	default:
		view.Fail(w, r, log, http.StatusBadRequest, "status must be one of [all paid pending overdue]", nil)
		return
	}

	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list payments", err)
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	now := h.now()

	rows := make([]Row, 0, len(payments))
	for _, p := range payments {
		display := p.EffectiveStatus(now)
		if status != StatusAll && display != status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.UserName), q) {
			continue
		}
		rows = append(rows, Row{Payment: p, DisplayStatus: display})
	}

	log.Info("payments listed", slog.Int("count", len(rows)))
	page := view.New(r, "Pagamentos", List{
		Query:    q,
		Status:   status,
		Payments: rows,
	}).WithEmpty(len(rows), "Nenhum pagamento encontrado")
	if notice != "" {
		page = page.WithNotice(notice)
	}
	view.Render(w, r, page)
}
