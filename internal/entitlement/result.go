package entitlement

import (
	"fmt"

	"github.com/messdesk/messdesk/internal/platform/httpx"
)

// Reason classifies why a feature check was denied.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonNoSubscription   Reason = "no_subscription"
	ReasonFeatureNotInPlan Reason = "feature_not_in_plan"
	ReasonQuotaExceeded    Reason = "quota_exceeded"
)

// Decision is the structured outcome of a feature-gate check. Denials are
// ordinary results, not errors, so callers can branch without exceptions.
type Decision struct {
	Feature Feature
	Allowed bool
	Reason  Reason
	Plan    Plan
	Limit   *int // nil when unlimited or not applicable
	Used    int
}

// Remaining returns the remaining quota, or nil when unlimited.
func (d Decision) Remaining() *int {
	if d.Limit == nil {
		return nil
	}
	left := *d.Limit - d.Used
	if left < 0 {
		left = 0
	}
	return &left
}

// Err translates a denial into the matching transport sentinel so handlers
// can delegate to httpx.RespondError. Allowed decisions return nil.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonAllowed:
		return nil
	case ReasonNoSubscription:
		return fmt.Errorf("%w: no active subscription", httpx.ErrSubscriptionRequired)
	case ReasonFeatureNotInPlan:
		return fmt.Errorf("%w: %s not included in %s plan", httpx.ErrSubscriptionRequired, d.Feature, d.Plan)
	case ReasonQuotaExceeded:
		return fmt.Errorf("%w: %s", httpx.ErrQuotaExceeded, d.Feature)
	}
	return fmt.Errorf("%w: %s", httpx.ErrForbidden, d.Feature)
}

func allowed(f Feature, plan Plan, usageLimit *int, used int) Decision {
	return Decision{Feature: f, Allowed: true, Reason: ReasonAllowed, Plan: plan, Limit: usageLimit, Used: used}
}

func denied(f Feature, plan Plan, reason Reason, usageLimit *int, used int) Decision {
	return Decision{Feature: f, Allowed: false, Reason: reason, Plan: plan, Limit: usageLimit, Used: used}
}
