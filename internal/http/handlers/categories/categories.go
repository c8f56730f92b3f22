// Package categories реализует страницу таксономии город → компания → сектор.
package categories

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

// Service — хранилище категорий.
type Service interface {
	ListCategories(ctx context.Context, userID string) ([]*models.Category, error)
	CreateCategory(ctx context.Context, userID string, in models.CategoryInput) (string, error)
	UpdateCategory(ctx context.Context, userID, id string, in models.CategoryInput) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

// Tree — данные страницы.
type Tree struct {
	Query   string            `json:"query,omitempty"`
	Total   int               `json:"total"`
	Tree    []*category.Node  `json:"tree"`
	Options []category.Option `json:"parent_options"`
}

// Handler обслуживает страницу категорий.
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
// @Summary Дерево категорий
// @Tags Categories
// @Produce json
// @Param q query string false "Поиск по названию; сохраняет предков найденных"
// @Success 200 {object} response.Response
// @Router /categories [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.renderTree(w, r, h.logger(r, "handlers.categories.List"), "")
}

// Create godoc
// @Summary Создание категории
// @Tags Categories
// @Accept json
// @Produce json
// @Param request body models.CategoryInput true "Категория"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /categories [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.categories.Create")

	var in models.CategoryInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}

	id, err := h.service.CreateCategory(r.Context(), view.UserID(r), in)
	if err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("category created", slog.String("id", id))
	render.Status(r, http.StatusCreated)
	h.renderTree(w, r, log, "Categoria criada")
}

// Update godoc
// @Summary Изменение категории
// @Tags Categories
// @Accept json
// @Produce json
// @Param id path string true "ID категории"
// @Param request body models.CategoryInput true "Категория"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /categories/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.categories.Update")

	var in models.CategoryInput
	if !view.Decode(w, r, log, h.validate, &in) {
		return
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if in.ParentID != nil && *in.ParentID == id {
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "category cannot be its own parent", nil)
		return
	}
	if err := h.service.UpdateCategory(r.Context(), view.UserID(r), id, in); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("category updated", slog.String("id", id))
	h.renderTree(w, r, log, "Categoria atualizada")
}

// Delete godoc
// @Summary Удаление категории
// @Description Дочерние категории и контакты теряют ссылку. Без confirm=true возвращает 428.
// @Tags Categories
// @Produce json
// @Param id path string true "ID категории"
// @Param confirm query bool false "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 428 {object} response.ConfirmResponse
// @Router /categories/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.categories.Delete")

	if !view.Confirmed(w, r, "Tem certeza que deseja excluir esta categoria?") {
		return
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), view.UserID(r), id); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("category deleted", slog.String("id", id))
	h.renderTree(w, r, log, "Categoria excluída")
}

func (h *Handler) writeFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		view.Fail(w, r, log, http.StatusNotFound, "category not found", nil)
	case errors.Is(err, storage.ErrForeignCategory):
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "parent category not found", nil)
	default:
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to save category", err)
	}
}

func (h *Handler) renderTree(w http.ResponseWriter, r *http.Request, log *slog.Logger, notice string) {
	list, err := h.service.ListCategories(r.Context(), view.UserID(r))
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list categories", err)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	tree := category.Filter(category.Build(list), q)

	page := view.New(r, "Categorias", Tree{
		Query:   q,
		Total:   len(list),
		Tree:    tree,
		Options: category.Options(list),
	}).WithEmpty(len(tree), "Nenhuma categoria encontrada")
	if notice != "" {
		page = page.WithNotice(notice)
	}
	view.Render(w, r, page)
}
