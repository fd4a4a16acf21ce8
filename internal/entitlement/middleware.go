package entitlement

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/messdesk/messdesk/internal/platform/httpx"
)

// ScopeFunc extracts the resolved tenant scope from the request context.
type ScopeFunc func(ctx context.Context) Scope

// GateCounter observes feature gate outcomes, satisfied by the metrics
// registry. A nil counter disables recording.
type GateCounter interface {
	FeatureDenied(feature, reason string)
	QuotaConsumed(feature string)
}

// Middleware wires feature gates into HTTP routes.
type Middleware struct {
	Engine  *Engine
	Scope   ScopeFunc
	Logger  *slog.Logger
	Counter GateCounter
}

// GateTable maps every catalogued feature to its check-only gate. It is
// built once at startup from the catalogue data; routes pick their gate out
// of the table instead of constructing one ad hoc.
type GateTable map[Feature]func(http.Handler) http.Handler

// NewGateTable builds the static feature -> gate table.
func NewGateTable(m Middleware) GateTable {
	table := make(GateTable, len(Features()))
	for _, f := range Features() {
		table[f] = m.Gate(f)
	}
	return table
}

// Gate checks the feature without consuming quota. Call sites that only
// show or hide functionality use this.
func (m Middleware) Gate(f Feature) func(http.Handler) http.Handler {
	return m.guard(f, false, func(ctx context.Context, scope Scope) (Decision, error) {
		return m.Engine.CanUseFeature(ctx, scope, f)
	})
}

// Meter checks the feature and consumes one unit of quota before the
// handler runs. Mutating call sites use this so concurrent requests cannot
// overshoot the plan limit.
func (m Middleware) Meter(f Feature) func(http.Handler) http.Handler {
	return m.guard(f, true, func(ctx context.Context, scope Scope) (Decision, error) {
		return m.Engine.IncrementFeatureUsage(ctx, scope, f)
	})
}

func (m Middleware) guard(f Feature, metered bool, check func(context.Context, Scope) (Decision, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := m.Scope(r.Context())
			if scope == nil {
				if m.Logger != nil {
					m.Logger.Error("entitlement: scope not resolved", slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			decision, err := check(r.Context(), scope)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("entitlement: feature gate", slog.String("feature", string(f)), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !decision.Allowed {
				if m.Counter != nil {
					m.Counter.FeatureDenied(string(f), string(decision.Reason))
				}
				httpx.RespondError(w, decision.Err())
				return
			}
			if metered && m.Counter != nil {
				m.Counter.QuotaConsumed(string(f))
			}
			next.ServeHTTP(w, r)
		})
	}
}
