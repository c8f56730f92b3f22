// Package notfound отвечает на неизвестные маршруты.
package notfound

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/auto-trigger/internal/http/response"
	"github.com/magabrotheeeer/auto-trigger/internal/http/view"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

// Handler возвращает страницу 404. Меню показывается, если запрос прошел
// через middleware сессии.
type Handler struct {
	log *slog.Logger
}

// New создает Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Info("route not found",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	render.Status(r, http.StatusNotFound)
	if _, ok := session.FromContext(r.Context()); !ok {
		render.JSON(w, r, response.Error("page not found"))
		return
	}
	view.Render(w, r, view.New(r, "404", map[string]string{
		"message": "Página não encontrada",
		"home":    "/",
	}))
}
