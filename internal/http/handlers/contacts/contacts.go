// Package contacts реализует страницу контактов пользователя: список с
// поиском и подписью категории, создание, изменение и удаление.
package contacts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auto-trigger/internal/category"
	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

const (
	title      = "Contatos"
	emptyText  = "Nenhum contato encontrado"
	noCategory = "Sem categoria"
)

// Service — хранилище контактов и категорий.
type Service interface {
	ListContacts(ctx context.Context, userID string) ([]*models.Contact, error)
	ListCategories(ctx context.Context, userID string) ([]*models.Category, error)
	CreateContact(ctx context.Context, userID string, in models.ContactInput) (string, error)
	UpdateContact(ctx context.Context, userID, id string, in models.ContactInput) error
	DeleteContact(ctx context.Context, userID, id string) error
}

// Row — строка таблицы контактов.
type Row struct {
	*models.Contact
	CategoryLabel string `json:"category_label"`
}

// List — данные страницы.
type List struct {
	Query    string            `json:"query,omitempty"`
	Contacts []Row             `json:"contacts"`
	Options  []category.Option `json:"category_options"`
}

// Handler обслуживает страницу контактов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список контактов
// @Tags Contacts
// @Produce json
// @Param q query string false "Поиск по имени, email или телефону"
// @Success 200 {object} response.Response
// @Failure 500 {object} response.ErrorResponse
// @Router /contacts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, h.logger(r, "handlers.contacts.List"), "")
}

// Create godoc
// @Summary Создание контакта
// @Tags Contacts
// @Accept json
// @Produce json
// @Param request body models.ContactInput true "Контакт"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /contacts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contacts.Create")

	var in models.ContactInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}

	id, err := h.service.CreateContact(r.Context(), view.UserID(r), in)
	if err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("contact created", slog.String("id", id))
	render.Status(r, http.StatusCreated)
	h.renderList(w, r, log, "Contato criado")
}

// Update godoc
// @Summary Изменение контакта
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "ID контакта"
// @Param request body models.ContactInput true "Контакт"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /contacts/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contacts.Update")

	var in models.ContactInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.UpdateContact(r.Context(), view.UserID(r), id, in); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("contact updated", slog.String("id", id))
	h.renderList(w, r, log, "Contato atualizado")
}

// Delete godoc
// @Summary Удаление контакта
// @Description Без confirm=true возвращает 428 и ничего не удаляет.
// @Tags Contacts
// @Produce json
// @Param id path string true "ID контакта"
// @Param confirm query bool false "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 428 {object} response.ConfirmResponse
// @Router /contacts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.contacts.Delete")

	if !view.Confirmed(w, r, "Tem certeza que deseja excluir este contato?") {
		return
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.DeleteContact(r.Context(), view.UserID(r), id); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("contact deleted", slog.String("id", id))
	h.renderList(w, r, log, "Contato excluído")
}

func (h *Handler) writeFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		view.Fail(w, r, log, http.StatusNotFound, "contact not found", nil)
	case errors.Is(err, storage.ErrForeignCategory):
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "category not found", nil)
	default:
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to save contact", err)
	}
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, log *slog.Logger, notice string) {
	userID := view.UserID(r)

	contacts, err := h.service.ListContacts(r.Context(), userID)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list contacts", err)
		return
	}
	categories, err := h.service.ListCategories(r.Context(), userID)
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list categories", err)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	labels := category.Labels(categories)

	rows := make([]Row, 0, len(contacts))
	for _, c := range contacts {
		if !matches(c, q) {
			continue
		}
		label := noCategory
		if c.CategoryID != nil {
			if l, ok := labels[*c.CategoryID]; ok {
				label = l
			}
		}
		rows = append(rows, Row{Contact: c, CategoryLabel: label})
	}

	log.Info("contacts listed", slog.Int("count", len(rows)))
	page := view.New(r, title, List{
		Query:    q,
		Contacts: rows,
		Options:  category.Options(categories),
	}).WithEmpty(len(rows), emptyText)
	if notice != "" {
		page = page.WithNotice(notice)
	}
	view.Render(w, r, page)
}

func matches(c *models.Contact, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Email), q) ||
		strings.Contains(c.Phone, q)
}
