// Package users реализует административную страницу пользователей.
package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/storage"
)

const dateLayout = "2006-01-02"

// Service — хранилище пользователей.
type Service interface {
	ListUsers(ctx context.Context) ([]*models.ManagedUser, error)
	UpdateUserSettings(ctx context.Context, userID, webhookURL string, planExpiry *time.Time) error
	SetUserActive(ctx context.Context, userID string, active bool) error
	DeleteUser(ctx context.Context, userID string) error
}

// SettingsRequest — изменение настроек пользователя. Пустой plan_expiry
// снимает срок плана.
type SettingsRequest struct {
	WebhookURL string `json:"webhook_url" validate:"omitempty,url"`
	PlanExpiry string `json:"plan_expiry"`
}

// Row — строка списка.
type Row struct {
	*models.ManagedUser
	AccountActive bool `json:"account_active"`
}

// List — данные страницы.
type List struct {
	Query string `json:"query,omitempty"`
	Users []Row  `json:"users"`
}

// Handler обслуживает страницу пользователей.
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
// @Summary Пользователи с ролями и настройками
// @Tags Users
// @Produce json
// @Param q query string false "Поиск по имени или email"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Router /users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, h.logger(r, "handlers.users.List"), "")
}

// Update godoc
// @Summary Изменение вебхука и срока плана
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "ID пользователя"
// @Param request body SettingsRequest true "Настройки"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /users/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Update")

	var req SettingsRequest
	if !view.Decode(w, r, log, h.validate, &req) {
		return
	}

	var expiry *time.Time
	if req.PlanExpiry != "" {
		t, err := time.Parse(dateLayout, req.PlanExpiry)
		if err != nil {
			view.Fail(w, r, log, http.StatusUnprocessableEntity, "field PlanExpiry must be a date in format YYYY-MM-DD", nil)
			return
		}
		expiry = &t
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if err := h.service.UpdateUserSettings(r.Context(), id, req.WebhookURL, expiry); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("user settings updated", slog.String("id", id))
	h.renderList(w, r, log, "Usuário atualizado")
}

// Block godoc
// @Summary Блокировка пользователя
// @Tags Users
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response
// @Router /users/{id}/block [post]
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.logger(r, "handlers.users.Block"), false, "Usuário bloqueado")
}

// Unblock godoc
// @Summary Разблокировка пользователя
// @Tags Users
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response
// @Router /users/{id}/unblock [post]
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.logger(r, "handlers.users.Unblock"), true, "Usuário desbloqueado")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, log *slog.Logger, active bool, notice string) {
	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if !active && id == view.UserID(r) {
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "cannot block yourself", nil)
		return
	}
	if err := h.service.SetUserActive(r.Context(), id, active); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("user activity changed", slog.String("id", id), slog.Bool("active", active))
	h.renderList(w, r, log, notice)
}

// Delete godoc
// @Summary Удаление пользователя
// @Description Удаляет аккаунт со всеми данными. Без confirm=true возвращает 428.
// @Tags Users
// @Produce json
// @Param id path string true "ID пользователя"
// @Param confirm query bool false "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 428 {object} response.ConfirmResponse
// @Router /users/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Delete")

	if !view.Confirmed(w, r, "Tem certeza que deseja excluir este usuário?") {
		return
	}

	id, ok := view.ID(w, r, log)
	if !ok {
		return
	}
	if id == view.UserID(r) {
		view.Fail(w, r, log, http.StatusUnprocessableEntity, "cannot delete yourself", nil)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.writeFailed(w, r, log, err)
		return
	}

	log.Info("user deleted", slog.String("id", id))
	h.renderList(w, r, log, "Usuário excluído")
}

func (h *Handler) writeFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		view.Fail(w, r, log, http.StatusNotFound, "user not found", nil)
		return
	}
	view.Fail(w, r, log, http.StatusInternalServerError, "failed to update user", err)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, log *slog.Logger, notice string) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	now := h.now()

	rows := make([]Row, 0, len(list))
	for _, u := range list {
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		rows = append(rows, Row{ManagedUser: u, AccountActive: u.Settings.AccountActive(now)})
	}

	log.Info("users listed", slog.Int("count", len(rows)))
	page := view.New(r, "Usuários", List{Query: q, Users: rows}).
		WithEmpty(len(rows), "Nenhum usuário encontrado")
	if notice != "" {
		page = page.WithNotice(notice)
	}
	view.Render(w, r, page)
}
