// Package view собирает JSON-документ страницы: оболочку навигации,
// текущего пользователя и данные страницы.
package view

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/auto-trigger/internal/http/response"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
	"github.com/magabrotheeeer/auto-trigger/internal/nav"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

// Page — документ страницы.
type Page struct {
	Title   string       `json:"title"`
	Path    string       `json:"path"`
	Menu    []nav.Item   `json:"menu,omitempty"`
	User    *models.User `json:"user,omitempty"`
	IsAdmin bool         `json:"is_admin"`
	Notice  string       `json:"notice,omitempty"`
	Empty   string       `json:"empty,omitempty"`
	Data    any          `json:"data,omitempty"`
}

// New собирает страницу по состоянию сессии из контекста запроса.
func New(r *http.Request, title string, data any) Page {
	st := session.StateFromContext(r.Context())
	p := Page{
		Title:   title,
		Path:    r.URL.Path,
		User:    st.User,
		IsAdmin: st.IsAdmin,
		Data:    data,
	}
	if st.User != nil {
		p.Menu = nav.Menu(st.IsAdmin, r.URL.Path)
	}
	return p
}

// WithEmpty задает сообщение пустого списка, если n == 0.
func (p Page) WithEmpty(n int, msg string) Page {
	if n == 0 {
		p.Empty = msg
	}
	return p
}

// WithNotice задает уведомление об успешной операции.
func (p Page) WithNotice(msg string) Page {
	p.Notice = msg
	return p
}

// Render отправляет страницу со статусом 200.
func Render(w http.ResponseWriter, r *http.Request, p Page) {
	render.JSON(w, r, response.StatusOKWithData(p))
}

// UserID возвращает идентификатор текущего пользователя.
// За RequireUser берется из снимка запроса, поэтому выход во время
// запроса его не меняет.
func UserID(r *http.Request) string {
	st := session.StateFromContext(r.Context())
	if st.User == nil {
		return ""
	}
	return st.User.ID
}

// ID возвращает параметр пути id. Значение, не являющееся UUID, дает 404.
func ID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		log.Info("invalid id in path", slog.String("id", id))
		Fail(w, r, log, http.StatusNotFound, "not found", nil)
		return "", false
	}
	return id, true
}

// Fail логирует ошибку и отправляет уведомление с кодом status.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, msg string, err error) {
	if err != nil {
		log.Error(msg, sl.Err(err))
	}
	render.Status(r, status)
	render.JSON(w, r, response.Error(msg))
}

// Decode читает JSON-тело в dst и проверяет его. При ошибке ответ уже отправлен.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		Fail(w, r, log, http.StatusBadRequest, "failed to decode request", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			Fail(w, r, log, http.StatusBadRequest, "invalid request", err)
			return false
		}
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return false
	}
	return true
}

// Confirmed сообщает, подтверждено ли удаление параметром ?confirm=true.
// Без подтверждения отправляет 428 с текстом prompt.
func Confirmed(w http.ResponseWriter, r *http.Request, prompt string) bool {
	if r.URL.Query().Get("confirm") == "true" {
		return true
	}
	render.Status(r, http.StatusPreconditionRequired)
	render.JSON(w, r, response.Confirm(prompt))
	return false
}
