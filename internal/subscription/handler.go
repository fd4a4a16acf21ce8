package subscription

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/messdesk/messdesk/internal/authz"
	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/platform/httpx"
	"github.com/messdesk/messdesk/internal/tenant"
)

// Handler serves plan catalogue and subscription endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authzMW  authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, authzMW authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authzMW: authzMW, validate: validator.New()}
}

// MountRoutes attaches subscription routes. The router must already carry
// the tenant scope middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/packages", h.listPackages)
	r.Get("/current", h.current)
	r.With(h.authzMW.RequirePermission(authz.PermPermissionManagement)).Get("/history", h.history)
	r.With(h.authzMW.RequirePermission(authz.PermPermissionManagement)).Post("/subscribe", h.subscribe)
	r.With(h.authzMW.RequirePermission(authz.PermPermissionManagement)).Post("/renew", h.renew)
}

type packageResponse struct {
	Code         string `json:"code"`
	Plan         string `json:"plan"`
	Name         string `json:"name"`
	DurationDays int    `json:"duration_days"`
	Price        string `json:"price"`
	Trial        bool   `json:"trial"`
}

func (h *Handler) listPackages(w http.ResponseWriter, r *http.Request) {
	pkgs := entitlement.Packages()
	out := make([]packageResponse, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, packageResponse{
			Code:         p.Code,
			Plan:         string(p.Plan),
			Name:         p.Name,
			DurationDays: p.DurationDays,
			Price:        p.Price.StringFixed(2),
			Trial:        p.Trial,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"packages": out})
}

type subscriptionResponse struct {
	Plan      string    `json:"plan"`
	Package   string    `json:"package"`
	Trial     bool      `json:"trial"`
	Active    bool      `json:"active"`
	StartsAt  time.Time `json:"starts_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sub, err := h.service.Current(r.Context(), scope.MessID())
	if err != nil {
		if errors.Is(err, entitlement.ErrNoSubscription) {
			httpx.RespondError(w, httpx.ErrSubscriptionRequired)
			return
		}
		h.logger.Error("subscription: current", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSubscriptionResponse(sub))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	subs, err := h.service.History(r.Context(), scope.MessID())
	if err != nil {
		h.logger.Error("subscription: history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subscriptions": out})
}

type subscribeRequest struct {
	PackageCode string `json:"package_code" validate:"required"`
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	var req subscribeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	sub, err := h.service.Subscribe(r.Context(), scope.ActorID(), scope.MessID(), req.PackageCode, scope.PeriodCode())
	if err != nil {
		h.respondLifecycleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sub, err := h.service.Renew(r.Context(), scope.ActorID(), scope.MessID(), scope.PeriodCode())
	if err != nil {
		h.respondLifecycleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

func (h *Handler) respondLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownPackage):
		httpx.RespondError(w, httpx.ErrValidation)
	case errors.Is(err, ErrTrialConsumed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrConcurrentChange):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, entitlement.ErrNoSubscription):
		httpx.RespondError(w, httpx.ErrSubscriptionRequired)
	default:
		h.logger.Error("subscription: lifecycle", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toSubscriptionResponse(s entitlement.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Plan:      string(s.Plan),
		Package:   s.Package,
		Trial:     s.Trial,
		Active:    s.Active,
		StartsAt:  s.StartsAt,
		ExpiresAt: s.ExpiresAt,
	}
}
