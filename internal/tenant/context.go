package tenant

import "context"

type scopeContextKey struct{}

// ContextWithScope stores the resolved tenant scope in context.
func ContextWithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the tenant scope, nil when unresolved.
func ScopeFromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeContextKey{}).(*Scope)
	return scope
}

// RequireScope extracts the tenant scope or reports ErrScopeMissing.
func RequireScope(ctx context.Context) (*Scope, error) {
	scope := ScopeFromContext(ctx)
	if scope == nil {
		return nil, ErrScopeMissing
	}
	return scope, nil
}
