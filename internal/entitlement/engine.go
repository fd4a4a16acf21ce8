package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine decides whether a mess's active subscription grants a feature and
// tracks metered usage against plan limits. It is stateless; the tenant
// scope arrives as an explicit argument and the billing period is never
// re-resolved mid-check.
type Engine struct {
	repo     Repository
	cache    *Cache
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithCache attaches a snapshot cache for AvailableFeatures.
func WithCache(c *Cache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithNotifier attaches a quota-exhaustion observer.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine constructs an Engine.
func NewEngine(repo Repository, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasActiveSubscription reports whether the mess holds a current, unexpired
// subscription.
func (e *Engine) HasActiveSubscription(ctx context.Context, messID int64) (bool, error) {
	_, err := e.repo.ActiveSubscription(ctx, messID, e.now())
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CanUseFeature resolves the active plan and applies the feature decision
// table. It is a pure read: repeated calls without an intervening increment
// return the same decision.
func (e *Engine) CanUseFeature(ctx context.Context, scope Scope, f Feature) (Decision, error) {
	if scope == nil {
		return Decision{}, ErrScopeMissing
	}
	sub, err := e.repo.ActiveSubscription(ctx, scope.MessID(), e.now())
	if err != nil {
		if errors.Is(err, ErrNoSubscription) {
			return denied(f, "", ReasonNoSubscription, nil, 0), nil
		}
		return Decision{}, err
	}
	usageLimit, inPlan := FeatureLimit(sub.Plan, f)
	if !inPlan {
		return denied(f, sub.Plan, ReasonFeatureNotInPlan, nil, 0), nil
	}
	if !f.Countable() || usageLimit == nil {
		return allowed(f, sub.Plan, usageLimit, 0), nil
	}
	used, err := e.repo.FeatureUsed(ctx, scope.MessID(), scope.PeriodCode(), f)
	if err != nil {
		return Decision{}, err
	}
	if used >= *usageLimit {
		return denied(f, sub.Plan, ReasonQuotaExceeded, usageLimit, used), nil
	}
	return allowed(f, sub.Plan, usageLimit, used), nil
}

// IncrementFeatureUsage re-validates the gate, then consumes one unit of
// quota through a conditional write so concurrent requests can never push
// the counter past the limit. Non-countable features pass through without a
// counter change.
func (e *Engine) IncrementFeatureUsage(ctx context.Context, scope Scope, f Feature) (Decision, error) {
	decision, err := e.CanUseFeature(ctx, scope, f)
	if err != nil || !decision.Allowed {
		return decision, err
	}
	if !f.Countable() {
		return decision, nil
	}

	used, ok, err := e.repo.IncrementUsage(ctx, scope.MessID(), scope.PeriodCode(), f, decision.Limit)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		// Lost the race: another request consumed the final unit between the
		// check and the write. Re-read the counter so the denial reports what
		// is actually used, not the stale pre-race value.
		current, err := e.repo.FeatureUsed(ctx, scope.MessID(), scope.PeriodCode(), f)
		if err != nil {
			return Decision{}, err
		}
		return denied(f, decision.Plan, ReasonQuotaExceeded, decision.Limit, current), nil
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, scope.MessID(), scope.PeriodCode())
	}
	if e.notifier != nil && decision.Limit != nil && used >= *decision.Limit {
		e.notifier.QuotaExhausted(ctx, scope.MessID(), f, used)
	}
	decision.Used = used
	return decision, nil
}

// AvailableFeatures returns the display snapshot of every feature on the
// active plan for the current period. Best-effort: counters reflect call
// time and are not transactionally linked to subsequent use.
func (e *Engine) AvailableFeatures(ctx context.Context, scope Scope) (map[Feature]Status, error) {
	if scope == nil {
		return nil, ErrScopeMissing
	}
	if e.cache != nil {
		return e.cache.Snapshot(ctx, scope.MessID(), scope.PeriodCode(), func() (map[Feature]Status, error) {
			return e.buildSnapshot(ctx, scope)
		})
	}
	return e.buildSnapshot(ctx, scope)
}

func (e *Engine) buildSnapshot(ctx context.Context, scope Scope) (map[Feature]Status, error) {
	var (
		sub   Subscription
		usage map[Feature]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = e.repo.ActiveSubscription(gctx, scope.MessID(), e.now())
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = e.repo.AllUsage(gctx, scope.MessID(), scope.PeriodCode())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := make(map[Feature]Status)
	for _, f := range PlanFeatures(sub.Plan) {
		usageLimit, _ := FeatureLimit(sub.Plan, f)
		status := Status{Countable: f.Countable(), Limit: usageLimit, Used: usage[f]}
		if usageLimit != nil {
			left := *usageLimit - status.Used
			if left < 0 {
				left = 0
			}
			status.Remaining = &left
		}
		snapshot[f] = status
	}
	return snapshot, nil
}
