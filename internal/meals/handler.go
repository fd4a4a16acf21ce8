package meals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/messdesk/messdesk/internal/authz"
	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/platform/httpx"
	"github.com/messdesk/messdesk/internal/shared"
	"github.com/messdesk/messdesk/internal/tenant"
)

// Handler serves meal log endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	evaluator *authz.Evaluator
	authzMW   authz.Middleware
	entMW     entitlement.Middleware
	validate  *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, evaluator *authz.Evaluator, authzMW authz.Middleware, entMW entitlement.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		evaluator: evaluator,
		authzMW:   authzMW,
		entMW:     entMW,
		validate:  validator.New(),
	}
}

// MountRoutes attaches meal routes. The router must already carry the
// tenant scope middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	// Creating an entry both requires the meal-add permission and consumes
	// one unit of the meal-entry quota.
	r.With(
		h.authzMW.RequireAny(authz.PermMealAdd, authz.PermMealManagement),
		h.entMW.Meter(entitlement.FeatureMealEntry),
	).Post("/", h.create)
	r.Put("/{mealID}", h.update)
	r.Delete("/{mealID}", h.remove)
}

type mealRequest struct {
	Date  string `json:"date" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=breakfast lunch dinner"`
	Count int    `json:"count" validate:"required,min=1,max=20"`
	Note  string `json:"note" validate:"max=200"`
}

type mealResponse struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Date   string `json:"date"`
	Type   string `json:"type"`
	Count  int    `json:"count"`
	Note   string `json:"note,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	req, date, ok := h.decodeMeal(w, r)
	if !ok {
		return
	}
	log, err := h.service.Log(r.Context(), scope, date, MealType(req.Type), req.Count, req.Note)
	if err != nil {
		h.respondMealError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMealResponse(log))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	logs, err := h.service.ListPeriod(r.Context(), scope)
	if err != nil {
		h.logger.Error("meals: list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]mealResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toMealResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"meals": out, "period": scope.Period.Code})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	summaries, err := h.service.Summary(r.Context(), scope)
	if err != nil {
		h.logger.Error("meals: summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"summary": summaries, "period": scope.Period.Code})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	existing, ok := h.loadForWrite(w, r, scope)
	if !ok {
		return
	}
	req, date, ok := h.decodeMeal(w, r)
	if !ok {
		return
	}
	if err := h.service.Update(r.Context(), existing, date, MealType(req.Type), req.Count, req.Note); err != nil {
		h.respondMealError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	scope := tenant.ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	existing, ok := h.loadForWrite(w, r, scope)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), existing.ID); err != nil {
		h.respondMealError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadForWrite fetches the target entry and applies the owner-or-permission
// policy: members may edit their own entries, managers anyone's. Records of
// another mess answer 404 so ids do not leak across tenants.
func (h *Handler) loadForWrite(w http.ResponseWriter, r *http.Request, scope *tenant.Scope) (MealLog, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "mealID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return MealLog{}, false
	}
	existing, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
		} else {
			h.logger.Error("meals: load", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return MealLog{}, false
	}
	if !authz.SameTenant(existing, scope) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return MealLog{}, false
	}
	owns := authz.BelongsToActor(existing, scope, "user_id")
	if !owns && !h.evaluator.CanAnyAccessModel(r.Context(), scope,
		[]authz.Permission{authz.PermMealEdit, authz.PermMealManagement}, existing) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return MealLog{}, false
	}
	return existing, true
}

func (h *Handler) decodeMeal(w http.ResponseWriter, r *http.Request) (mealRequest, time.Time, bool) {
	var req mealRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return req, time.Time{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return req, time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return req, time.Time{}, false
	}
	return req, date, true
}

func (h *Handler) respondMealError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidMeal), errors.Is(err, ErrOutsidePeriod):
		httpx.RespondError(w, httpx.ErrValidation)
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error("meals: write", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toMealResponse(m MealLog) mealResponse {
	return mealResponse{
		ID:     m.ID,
		UserID: m.UserID,
		Date:   m.Date.Format("2006-01-02"),
		Type:   string(m.Type),
		Count:  m.Count,
		Note:   m.Note,
	}
}
