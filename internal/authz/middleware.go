package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/messdesk/messdesk/internal/platform/httpx"
)

// ScopeFunc extracts the resolved tenant scope from the request context.
// Wired in main so this package stays independent of the tenant package.
type ScopeFunc func(ctx context.Context) Scope

// DenialCounter observes permission denials, satisfied by the metrics
// registry. A nil counter disables recording.
type DenialCounter interface {
	AuthzDenied(permission string)
}

// Middleware wires permission checks into HTTP routes.
type Middleware struct {
	Evaluator *Evaluator
	Scope     ScopeFunc
	Logger    *slog.Logger
	Denials   DenialCounter
}

// RequirePermission allows the request only when the actor holds perm.
func (m Middleware) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return m.RequireAny(perm)
}

// RequireAny allows the request when the actor holds at least one of perms.
// An unresolved scope is an integration error and maps to a 500, not a 403.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			scope, granted, ok := m.effective(w, r)
			if !ok {
				return
			}
			if scope.IsAdmin() || hasAny(granted, perms) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, perms[0])
		})
	}
}

// RequireAll allows the request only when the actor holds every permission.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			scope, granted, ok := m.effective(w, r)
			if !ok {
				return
			}
			if scope.IsAdmin() || hasAll(granted, perms) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, perms[0])
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, perm Permission) {
	if m.Denials != nil {
		m.Denials.AuthzDenied(string(perm))
	}
	httpx.RespondError(w, httpx.ErrForbidden)
}

func (m Middleware) effective(w http.ResponseWriter, r *http.Request) (Scope, []Permission, bool) {
	scope := m.Scope(r.Context())
	if scope == nil {
		if m.Logger != nil {
			m.Logger.Error("authz: scope not resolved", slog.String("path", r.URL.Path))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, nil, false
	}
	granted, err := m.Evaluator.Permissions(r.Context(), scope)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz: effective permissions", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return nil, nil, false
	}
	return scope, granted, true
}

func hasAny(granted []Permission, required []Permission) bool {
	set := make(map[Permission]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

func hasAll(granted []Permission, required []Permission) bool {
	set := make(map[Permission]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}
