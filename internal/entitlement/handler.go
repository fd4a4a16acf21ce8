package entitlement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/messdesk/messdesk/internal/platform/httpx"
)

// Handler exposes the feature snapshot API used by dashboards.
type Handler struct {
	logger *slog.Logger
	engine *Engine
	scope  ScopeFunc
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, engine *Engine, scope ScopeFunc) *Handler {
	return &Handler{logger: logger, engine: engine, scope: scope}
}

// MountRoutes attaches feature routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.available)
	r.Get("/{feature}/check", h.check)
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	snapshot, err := h.engine.AvailableFeatures(r.Context(), scope)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			httpx.RespondError(w, httpx.ErrSubscriptionRequired)
			return
		}
		h.logger.Error("feature snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"features": snapshot})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	scope := h.scope(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	feature := Feature(chi.URLParam(r, "feature"))
	if !feature.Valid() {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	decision, err := h.engine.CanUseFeature(r.Context(), scope, feature)
	if err != nil {
		h.logger.Error("feature check", slog.String("feature", string(feature)), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"feature":   decision.Feature,
		"allowed":   decision.Allowed,
		"reason":    decision.Reason,
		"limit":     decision.Limit,
		"used":      decision.Used,
		"remaining": decision.Remaining(),
	})
}
