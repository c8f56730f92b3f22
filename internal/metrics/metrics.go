// Package metrics объявляет метрики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы проверки роли.
const (
	RoleAdmin     = "admin"
	RoleNotAdmin  = "not_admin"
	RoleTimeout   = "timeout"
	RoleError     = "error"
	RoleAmbiguous = "ambiguous"
	RolePanic     = "panic"
)

var (
	// RoleResolutions — число проверок роли по исходу.
	RoleResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotrigger_role_resolutions_total",
		Help: "Role resolutions by outcome.",
	}, []string{"outcome"})

	// HTTPRequests — число HTTP-запросов по маршруту и коду ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotrigger_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration — длительность обработки HTTP-запросов.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autotrigger_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ActiveProviders — число устройств с запущенным провайдером сессии.
	ActiveProviders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autotrigger_session_providers",
		Help: "Devices with a running session provider.",
	})

	// Deliveries — доставки на вебхуки по результату.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotrigger_webhook_deliveries_total",
		Help: "Webhook deliveries by result.",
	}, []string{"result"})
)
