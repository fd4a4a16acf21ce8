package tenant

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/messdesk/messdesk/internal/platform/httpx"
	"github.com/messdesk/messdesk/internal/shared"
)

// Middleware resolves the tenant scope for authenticated requests.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAuth rejects anonymous requests.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if !sess.Authenticated() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResolveScope binds the tenant scope for the request: the session's user,
// its selected mess and the billing period in effect. The scope is resolved
// exactly once here and treated as read-only downstream.
func (m Middleware) ResolveScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if !sess.Authenticated() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if sess.Mess() == 0 {
			httpx.Problem(w, http.StatusConflict, "No Mess Selected", "select a mess before using this endpoint")
			return
		}
		scope, err := m.Service.ResolveScope(r.Context(), sess.Mess(), sess.User())
		if err != nil {
			if errors.Is(err, ErrNotMember) || errors.Is(err, shared.ErrNotFound) {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("tenant: resolve scope", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithScope(r.Context(), scope)))
	})
}
