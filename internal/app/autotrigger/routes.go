package autotrigger

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/categories"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/contacts"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/health"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/login"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/messages"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/notfound"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/payments"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/realtime"
	"github.com/magabrotheeeer/auto-trigger/internal/http/handlers/users"
	"github.com/magabrotheeeer/auto-trigger/internal/http/middlewarectx"
)

// Deps — зависимости маршрутов.
type Deps struct {
	Log       *slog.Logger
	Providers middlewarectx.Providers
	Limiter   *middlewarectx.IPLimiter
	Confirmer login.Confirmer
	Publisher messages.Publisher
	Checker   health.Checker
	Store     Store
	// SecureCookies включает флаг Secure у cookie устройства.
	SecureCookies bool
}

// Store — хранилище, которым пользуются страницы.
type Store interface {
	contacts.Service
	categories.Service
	dashboard.Service
	messages.Service
	payments.Service
	users.Service
}

// RegisterRoutes регистрирует все маршруты панели.
func RegisterRoutes(r chi.Router, d Deps) {
	log := d.Log

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.MetricsMiddleware,
	)

	// Служебные конечные точки работают без сессии
	r.Get("/health", health.New(log, d.Checker).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	loginHandler := login.New(log, d.Confirmer)
	contactsHandler := contacts.New(log, d.Store)
	categoriesHandler := categories.New(log, d.Store)
	messagesHandler := messages.New(log, d.Store, d.Publisher)
	paymentsHandler := payments.New(log, d.Store)
	usersHandler := users.New(log, d.Store)

	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.DeviceMiddleware(d.Providers, log, d.SecureCookies))

		r.Get("/", loginHandler.Page)
		r.Route("/auth", func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, log))
			r.Post("/signin", loginHandler.SignIn)
			r.Post("/signup", loginHandler.SignUp)
			r.Post("/signout", loginHandler.SignOut)
			r.Get("/confirm", loginHandler.Confirm)
		})

		// Страницы пользователя
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireUser(log))

			r.Get("/dashboard", dashboard.New(log, d.Store).ServeHTTP)
			r.Get("/realtime", realtime.New(log).ServeHTTP)

			r.Get("/contacts", contactsHandler.List)
			r.Post("/contacts", contactsHandler.Create)
			r.Put("/contacts/{id}", contactsHandler.Update)
			r.Delete("/contacts/{id}", contactsHandler.Delete)

			r.Get("/categories", categoriesHandler.List)
			r.Post("/categories", categoriesHandler.Create)
			r.Put("/categories/{id}", categoriesHandler.Update)
			r.Delete("/categories/{id}", categoriesHandler.Delete)

			r.Get("/messages", messagesHandler.Page)
			r.Post("/messages", messagesHandler.Send)

			// Административные страницы
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(log))

				r.Get("/users", usersHandler.List)
				r.Put("/users/{id}", usersHandler.Update)
				r.Post("/users/{id}/block", usersHandler.Block)
				r.Post("/users/{id}/unblock", usersHandler.Unblock)
				r.Delete("/users/{id}", usersHandler.Delete)

				r.Get("/payments", paymentsHandler.List)
				r.Post("/payments", paymentsHandler.Create)
				r.Post("/payments/{id}/confirm", paymentsHandler.Confirm)
				r.Put("/payments/{id}/plan", paymentsHandler.AdjustPlan)
			})
		})

		r.NotFound(notfound.New(log).ServeHTTP)
	})
}
