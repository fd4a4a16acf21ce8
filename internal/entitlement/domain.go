package entitlement

import (
	"context"
	"errors"
	"time"
)

// Subscription is the relation between a mess and its plan. At most one
// subscription per mess is active at a time; plan changes supersede the
// previous row rather than deleting it.
type Subscription struct {
	ID        int64
	MessID    int64
	Plan      Plan
	Package   string
	Trial     bool
	Active    bool
	StartsAt  time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the validity window has elapsed at now.
func (s Subscription) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Status is the display snapshot of one feature for the current period.
type Status struct {
	Countable bool `json:"countable"`
	Limit     *int `json:"limit"` // nil = unlimited
	Used      int  `json:"used"`
	Remaining *int `json:"remaining"` // nil = unlimited
}

// Scope is the slice of the request's tenant context the engine needs. The
// tenant middleware resolves it once per request; the engine never
// re-resolves mid-check.
type Scope interface {
	MessID() int64
	PeriodCode() string
}

// ErrNoSubscription indicates the mess has no current active subscription.
var ErrNoSubscription = errors.New("entitlement: no active subscription")

// ErrScopeMissing indicates an engine call without a resolved tenant scope.
// This is an integration bug, not a feature denial.
var ErrScopeMissing = errors.New("entitlement: scope not resolved")

// Repository abstracts subscription reads and usage counter persistence.
// IncrementUsage must be atomic with respect to the limit check.
type Repository interface {
	// ActiveSubscription returns the single active, unexpired subscription
	// of the mess, or ErrNoSubscription.
	ActiveSubscription(ctx context.Context, messID int64, now time.Time) (Subscription, error)
	// FeatureUsed returns the counter for (mess, feature, period), zero when
	// no counter row exists yet.
	FeatureUsed(ctx context.Context, messID int64, period string, f Feature) (int, error)
	// AllUsage returns every counter of the mess for the period.
	AllUsage(ctx context.Context, messID int64, period string) (map[Feature]int, error)
	// IncrementUsage increments the counter iff usageLimit is nil or the
	// current value is below it, as a single conditional write. ok reports
	// whether the increment happened; used is the post-increment value.
	IncrementUsage(ctx context.Context, messID int64, period string, f Feature, usageLimit *int) (used int, ok bool, err error)
}

// Notifier observes metered increments that exhaust a quota so a user-facing
// notification can be dispatched out of band.
type Notifier interface {
	QuotaExhausted(ctx context.Context, messID int64, f Feature, used int)
}
