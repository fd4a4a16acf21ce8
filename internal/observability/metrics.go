package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authzDenials    *prometheus.CounterVec
	featureDenials  *prometheus.CounterVec
	quotaConsumed   *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messdesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "messdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	authzDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messdesk_authz_denials_total",
		Help: "Permission denials by permission key.",
	}, []string{"permission"})
	featureDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messdesk_feature_denials_total",
		Help: "Feature gate denials by feature and reason.",
	}, []string{"feature", "reason"})
	quotaConsumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messdesk_feature_usage_total",
		Help: "Metered feature units consumed, by feature.",
	}, []string{"feature"})
	registry.MustRegister(requests, duration, authzDenials, featureDenials, quotaConsumed)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authzDenials:    authzDenials,
		featureDenials:  featureDenials,
		quotaConsumed:   quotaConsumed,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuthzDenied counts a permission denial.
func (m *Metrics) AuthzDenied(permission string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(permission).Inc()
}

// FeatureDenied counts a feature gate denial with its decision reason.
func (m *Metrics) FeatureDenied(feature, reason string) {
	if m == nil {
		return
	}
	m.featureDenials.WithLabelValues(feature, reason).Inc()
}

// QuotaConsumed counts one consumed unit of a metered feature.
func (m *Metrics) QuotaConsumed(feature string) {
	if m == nil {
		return
	}
	m.quotaConsumed.WithLabelValues(feature).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
