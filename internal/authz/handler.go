package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/messdesk/messdesk/internal/platform/httpx"
	"github.com/messdesk/messdesk/internal/shared"
)

// Handler serves the role management API for the current mess.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	scope    ScopeFunc
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, scope ScopeFunc) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		scope:    scope,
		validate: validator.New(),
	}
}

// MountRoutes attaches role routes. The caller gates them with
// RequirePermission(PermPermissionManagement).
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.listPermissions)
	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Put("/roles/{roleID}", h.updateRole)
	r.Delete("/roles/{roleID}", h.deleteRole)
}

type roleRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=64"`
	Permissions []string `json:"permissions" validate:"dive,min=1"`
}

type roleResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Admin       bool     `json:"admin"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	type group struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	groups := make([]group, 0)
	for _, g := range Groups() {
		groups = append(groups, group{Name: g.Name, Permissions: permissionKeys(g.Permissions)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	roles, err := h.service.ListRoles(r.Context(), scope.MessID())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.CreateRole(r.Context(), scope.MessID(), req.Name, req.Permissions)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), scope.MessID(), roleID, req.Name, req.Permissions)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.DeleteRole(r.Context(), scope.MessID(), roleID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request) (Scope, bool) {
	scope := h.scope(r.Context())
	if scope == nil {
		h.logger.Error("authz handler: scope not resolved", slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, false
	}
	return scope, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrRoleProtected), errors.Is(err, ErrRoleInUse):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNameRequired):
		httpx.RespondError(w, httpx.ErrValidation)
	default:
		h.logger.Error("role service", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Admin:       role.Admin,
		Permissions: permissionKeys(role.Permissions),
	}
}
