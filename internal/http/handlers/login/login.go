// Package login реализует страницу входа и действия аутентификации:
// вход по паролю, регистрацию, выход и подтверждение email по ссылке.
package login

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

	"github.com/magabrotheeeer/auto-trigger/internal/auth"
	"github.com/magabrotheeeer/auto-trigger/internal/http/response"
	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

// DashboardPath — страница после входа.
const DashboardPath = "/dashboard"

const signInWait = 3 * time.Second

// Confirmer подтверждает email по токену из письма.
type Confirmer interface {
	Confirm(ctx context.Context, token string) (string, error)
}

// SignInRequest — учетные данные для входа.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest — данные регистрации.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=100"`
}

// Handler обслуживает страницу входа.
type Handler struct {
	log       *slog.Logger
	confirmer Confirmer
	validate  *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, confirmer Confirmer) *Handler {
	return &Handler{
		log:       log,
		confirmer: confirmer,
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
// @Summary Страница входа
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Success 303 "Пользователь уже вошел"
// @Router / [get]
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	p := session.MustFromContext(r.Context())
	st, err := p.Store().WaitLoaded(r.Context())
	if err != nil {
		return
	}
	if st.User != nil {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	view.Render(w, r, view.New(r, "Auto Trigger", map[string]any{
		"actions": map[string]string{
			"sign_in": "/auth/signin",
			"sign_up": "/auth/signup",
		},
	}))
}

// SignIn godoc
// @Summary Вход по email и паролю
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Учетные данные"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 403 {object} response.ErrorResponse "Email не подтвержден"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/signin [post]
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.login.SignIn")

	var req SignInRequest
	if !view.Decode(w, r, log, h.validate, &req) {
		return
	}

	p := session.MustFromContext(r.Context())
	user, err := p.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			log.Info("invalid credentials", slog.String("email", req.Email))
			view.Fail(w, r, log, http.StatusUnauthorized, "invalid login credentials", nil)
		case errors.Is(err, auth.ErrEmailNotConfirmed):
			view.Fail(w, r, log, http.StatusForbidden, "email not confirmed", nil)
		default:
			view.Fail(w, r, log, http.StatusInternalServerError, "failed to sign in", err)
		}
		return
	}

	// состояние обновляется уведомлением SIGNED_IN; на устройстве может
	// оставаться предыдущий пользователь
	ctx, cancel := context.WithTimeout(r.Context(), signInWait)
	defer cancel()
	_, err = p.Store().WaitFor(ctx, func(st session.State) bool {
		return st.User != nil && st.User.ID == user.ID
	})
	if err != nil {
		log.Warn("sign-in notification not received in time", sl.Err(err))
	}

	log.Info("signed in", slog.String("email", req.Email))
	view.Render(w, r, view.New(r, "Auto Trigger", map[string]string{
		"redirect": DashboardPath,
	}).WithNotice("Login realizado!"))
}

// SignUp godoc
// @Summary Регистрация
// @Description Создает аккаунт и отправляет письмо со ссылкой подтверждения.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Данные регистрации"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/signup [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.login.SignUp")

	var req SignUpRequest
	if !view.Decode(w, r, log, h.validate, &req) {
		return
	}

	p := session.MustFromContext(r.Context())
	if err := p.SignUp(r.Context(), req.Email, req.Password, req.Name); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			view.Fail(w, r, log, http.StatusConflict, "user already registered", nil)
			return
		}
		view.Fail(w, r, log, http.StatusInternalServerError, "failed to sign up", err)
		return
	}

	log.Info("signed up", slog.String("email", req.Email))
	render.Status(r, http.StatusCreated)
	view.Render(w, r, view.New(r, "Auto Trigger", nil).WithNotice("Conta criada! Confirme seu email."))
}

// SignOut godoc
// @Summary Выход
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/signout [post]
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.login.SignOut")

	session.MustFromContext(r.Context()).SignOut()

	log.Info("signed out")
	view.Render(w, r, view.New(r, "Auto Trigger", map[string]string{
		"redirect": "/",
	}))
}

// Confirm godoc
// @Summary Подтверждение email
// @Tags Auth
// @Param token query string true "Токен из письма"
// @Success 303 "Редирект на страницу после регистрации"
// @Failure 400 {object} response.ErrorResponse
// @Router /auth/confirm [get]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.login.Confirm")

	token := r.URL.Query().Get("token")
	if token == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("token is required"))
		return
	}

	redirectTo, err := h.confirmer.Confirm(r.Context(), token)
	if err != nil {
		view.Fail(w, r, log, http.StatusBadRequest, "invalid or expired confirmation link", err)
		return
	}
	if !strings.HasPrefix(redirectTo, "/") || strings.HasPrefix(redirectTo, "//") {
		redirectTo = "/"
	}

	log.Info("email confirmed")
	http.Redirect(w, r, redirectTo, http.StatusSeeOther)
}
