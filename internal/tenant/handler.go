package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/messdesk/messdesk/internal/authz"
	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/platform/httpx"
	"github.com/messdesk/messdesk/internal/shared"
)

// Handler serves mess and membership endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	engine   *entitlement.Engine
	authzMW  authz.Middleware
	scopeMW  Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, engine *entitlement.Engine, authzMW authz.Middleware, scopeMW Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		engine:   engine,
		authzMW:  authzMW,
		scopeMW:  scopeMW,
		validate: validator.New(),
	}
}

// MountRoutes attaches mess routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.scopeMW.RequireAuth)
		r.Get("/", h.listMine)
		r.Post("/", h.create)
		r.Post("/select", h.selectMess)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.scopeMW.ResolveScope)
		r.Get("/current", h.current)
		r.Get("/members", h.listMembers)
		r.With(h.authzMW.RequireAny(authz.PermUserAdd, authz.PermUserManagement)).
			Post("/members", h.addMember)
		r.With(h.authzMW.RequireAny(authz.PermUserEdit, authz.PermUserManagement)).
			Put("/members/{userID}/role", h.changeRole)
		r.With(h.authzMW.RequireAny(authz.PermUserRemove, authz.PermUserManagement)).
			Delete("/members/{userID}", h.removeMember)
	})
}

type createMessRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=80"`
	AnchorDay int    `json:"anchor_day" validate:"omitempty,min=1,max=28"`
}

type messResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AnchorDay int    `json:"anchor_day"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var req createMessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	mess, err := h.service.CreateMess(r.Context(), req.Name, req.AnchorDay, sess.User())
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		h.logger.Error("create mess", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sess.SetMess(mess.ID)
	httpx.JSON(w, http.StatusCreated, toMessResponse(mess))
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	messes, err := h.service.ListMessesForUser(r.Context(), sess.User())
	if err != nil {
		h.logger.Error("list messes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]messResponse, 0, len(messes))
	for _, m := range messes {
		out = append(out, toMessResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messes": out})
}

type selectMessRequest struct {
	MessID int64 `json:"mess_id" validate:"required,gt=0"`
}

func (h *Handler) selectMess(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var req selectMessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	// Membership is verified before the session switches tenants.
	if _, err := h.service.repo.GetMembership(r.Context(), req.MessID, sess.User()); err != nil {
		if errors.Is(err, ErrNotMember) {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		h.logger.Error("select mess", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sess.SetMess(req.MessID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"mess":   toMessResponse(scope.Mess),
		"period": map[string]any{"code": scope.Period.Code, "start": scope.Period.Start, "end": scope.Period.End},
		"admin":  scope.Admin,
	})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	members, err := h.service.Members(r.Context(), scope.MessID())
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type memberResponse struct {
		UserID int64 `json:"user_id"`
		RoleID int64 `json:"role_id"`
		Admin  bool  `json:"admin"`
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{UserID: m.UserID, RoleID: m.RoleID, Admin: m.Admin})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out})
}

type addMemberRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	// Adding a member consumes one unit of the member-limit quota. The
	// engine re-validates inside the conditional write, so concurrent adds
	// cannot overshoot the plan limit.
	decision, err := h.engine.IncrementFeatureUsage(r.Context(), scope, entitlement.FeatureMemberLimit)
	if err != nil {
		h.logger.Error("member limit gate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if !decision.Allowed {
		httpx.RespondError(w, decision.Err())
		return
	}

	if err := h.service.AddMember(r.Context(), scope.MessID(), req.UserID, req.RoleID); err != nil {
		if errors.Is(err, ErrAlreadyMember) {
			httpx.RespondError(w, httpx.ErrDuplicate)
			return
		}
		h.logger.Error("add member", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type changeRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.ChangeMemberRole(r.Context(), scope.ActorID(), scope.MessID(), userID, req.RoleID); err != nil {
		h.respondMembershipError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	scope := ScopeFromContext(r.Context())
	if scope == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.RemoveMember(r.Context(), scope.MessID(), userID); err != nil {
		h.respondMembershipError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondMembershipError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotMember):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrAdminImmutable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("membership", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toMessResponse(m Mess) messResponse {
	return messResponse{ID: m.ID, Name: m.Name, AnchorDay: m.AnchorDay}
}
