// Package middlewarectx содержит HTTP middleware панели: привязку запроса
// к устройству и его провайдеру сессии, проверки пользователя и роли,
// ограничение частоты запросов и сбор метрик.
package middlewarectx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/auto-trigger/internal/http/response"
	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/session"
)

// DeviceCookie — cookie с идентификатором устройства.
const DeviceCookie = "autotrigger_device"

const deviceCookieTTL = 365 * 24 * time.Hour

// Providers возвращает провайдер сессии устройства.
type Providers interface {
	Get(device string) (*session.Provider, error)
}

// DeviceMiddleware определяет устройство по cookie (выдавая новое при
// отсутствии) и помещает провайдер его сессии в контекст запроса.
func DeviceMiddleware(providers Providers, log *slog.Logger, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.DeviceMiddleware"

			device := ""
			if c, err := r.Cookie(DeviceCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					device = c.Value
				}
			}
			if device == "" {
				device = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookie,
					Value:    device,
					Path:     "/",
					Expires:  time.Now().Add(deviceCookieTTL),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			p, err := providers.Get(device)
			if err != nil {
				log.Error("failed to start session provider",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err))
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("session service unavailable"))
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithProvider(r.Context(), p)))
		})
	}
}
