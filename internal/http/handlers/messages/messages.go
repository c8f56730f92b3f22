// Package messages реализует форму рассылки и историю отправок.
package messages

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auto-trigger/internal/category"
	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// Service — хранилище рассылок, категорий и контактов.
type Service interface {
	ListCategories(ctx context.Context, userID string) ([]*models.Category, error)
	ListMessages(ctx context.Context, userID string) ([]*models.Message, error)
	CreateMessage(ctx context.Context, userID string, in models.MessageInput) (string, error)
	CountContactsByCategories(ctx context.Context, userID string, categoryIDs []string) (int, error)
}

// Publisher ставит задание в очередь рассылки.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Limits — ограничения формы.
type Limits struct {
	MaxImages       int `json:"max_images"`
	MinDelayMinutes int `json:"min_delay_minutes"`
}

// HistoryRow — отправка в истории с названиями выбранных категорий.
type HistoryRow struct {
	*models.Message
	Categories []string `json:"categories"`
}

// Form — данные страницы.
type Form struct {
	Limits  Limits            `json:"limits"`
	Options []category.Option `json:"category_options"`
	History []HistoryRow      `json:"history"`
	Targets *int              `json:"targets,omitempty"`
}

// Handler обслуживает страницу рассылок.
type Handler struct {
	log       *slog.Logger
	service   Service
	publisher Publisher
	validate  *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service, publisher Publisher) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		publisher: publisher,
		validate:  validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Page godoc
// @Summary Форма рассылки и история
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Response
// @Router /messages [get]
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.messages.Page")

	categories, err := h.service.ListCategories(r.Context(), view.UserID(r))
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list categories", err)
		return
	}
	h.renderForm(w, r, log, categories, nil, "")
}

// Send godoc
// @Summary Отправка рассылки
// @Description Сохраняет задание и ставит его в очередь. Выбранные категории раскрываются до потомков.
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body models.MessageInput true "Рассылка"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse
// @Router /messages [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.messages.Send")

	var in models.MessageInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "field Content is a required field", nil)
		return
	}

	userID := view.UserID(r)
	categories, err := h.service.ListCategories(r.Context(), userID)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list categories", err)
		return
	}
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	for _, id := range in.CategoryIDs {
		if !known[id] {
			view.Fail(w, r, log, http.StatusUnprocessableEntity, "category not found", nil)
			return
		}
	}

	targets, err := h.service.CountContactsByCategories(r.Context(), userID, category.Descendants(categories, in.CategoryIDs))
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to count contacts", err)
		return
	}

	id, err := h.service.CreateMessage(r.Context(), userID, in)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to save message", err)
		return
	}
	if err := h.publisher.Publish(r.Context(), rabbitmq.QueueDispatch, models.DispatchJob{MessageID: id, UserID: userID}); err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to schedule dispatch", err)
		return
	}

	log.Info("message scheduled", slog.String("id", id), slog.Int("targets", targets))
	render.Status(r, http.StatusCreated)
	h.renderForm(w, r, log, categories, &targets, fmt.Sprintf(
		"Mensagens enviadas! %d categoria(s) selecionada(s). Enviando para %d contatos.",
		len(in.CategoryIDs), targets))
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, log *slog.Logger, categories []*models.Category, targets *int, notice string) {
	history, err := h.service.ListMessages(r.Context(), view.UserID(r))
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list messages", err)
		return
	}

	labels := category.Labels(categories)
	rows := make([]HistoryRow, 0, len(history))
	for _, m := range history {
		names := make([]string, 0, len(m.CategoryIDs))
		for _, id := range m.CategoryIDs {
			if l, ok := labels[id]; ok {
				names = append(names, l)
			}
		}
		rows = append(rows, HistoryRow{Message: m, Categories: names})
	}

	page := view.New(r, "Disparos", Form{
		Limits:  Limits{MaxImages: models.MaxImages, MinDelayMinutes: models.MinDelayMinutes},
		Options: category.Options(categories),
		History: rows,
		Targets: targets,
	}).WithEmpty(len(rows), "Nenhuma mensagem enviada")
	if notice != "" {
		page = page.WithNotice(notice)
	}
	view.Render(w, r, page)
}
