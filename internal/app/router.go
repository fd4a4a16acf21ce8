package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/messdesk/messdesk/internal/audit"
	"github.com/messdesk/messdesk/internal/auth"
	"github.com/messdesk/messdesk/internal/authz"
	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/meals"
	"github.com/messdesk/messdesk/internal/observability"
	"github.com/messdesk/messdesk/internal/shared"
	"github.com/messdesk/messdesk/internal/subscription"
	"github.com/messdesk/messdesk/internal/tenant"
	"github.com/messdesk/messdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler         *auth.Handler
	TenantHandler       *tenant.Handler
	AuthzHandler        *authz.Handler
	FeatureHandler      *entitlement.Handler
	SubscriptionHandler *subscription.Handler
	MealHandler         *meals.Handler
	AuditHandler        *audit.Handler
	JobHandler          *jobs.Handler

	ScopeMiddleware tenant.Middleware
	AuthzMiddleware authz.Middleware
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/messes", params.TenantHandler.MountRoutes)

	// Everything below operates on the selected mess, so the tenant scope is
	// resolved once here and reused by every authorization check downstream.
	r.Group(func(r chi.Router) {
		r.Use(params.ScopeMiddleware.ResolveScope)

		r.Route("/authz", func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequirePermission(authz.PermPermissionManagement))
			params.AuthzHandler.MountRoutes(r)
		})
		r.Route("/features", params.FeatureHandler.MountRoutes)
		r.Route("/subscription", params.SubscriptionHandler.MountRoutes)
		r.Route("/meals", params.MealHandler.MountRoutes)
		r.Route("/audit", func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequirePermission(authz.PermPermissionManagement))
			params.AuditHandler.MountRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
