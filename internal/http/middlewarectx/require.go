package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auto-trigger/internal/http/response"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

// LoginPath — страница входа.
const LoginPath = "/"

// RequireUser ждет завершения загрузки сессии и перенаправляет на страницу
// входа, если пользователя нет. Прочитанное состояние передается дальше
// в контексте запроса.
func RequireUser(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := session.MustFromContext(r.Context())

			st, err := p.Store().WaitLoaded(r.Context())
			if err != nil {
				// клиент ушел до окончания загрузки
				return
			}
			if st.User == nil {
				log.Debug("no user, redirecting to login",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path))
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithState(r.Context(), st)))
		})
	}
}

// RequireAdmin отвечает 403, если пользователь не администратор.
// Используется после RequireUser.
func RequireAdmin(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := session.StateFromContext(r.Context())
			if !st.IsAdmin {
				log.Warn("admin page requested by non-admin",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
