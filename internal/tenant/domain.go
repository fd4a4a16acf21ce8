package tenant

import (
	"errors"
	"time"
)

// Mess is a tenant: a shared household whose members log meals, purchases
// and deposits together.
type Mess struct {
	ID        int64
	Name      string
	AnchorDay int // billing cycle start day, 1..28
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership links a user to a mess with exactly one role. Admin marks the
// mess administrator, who implicitly holds every permission.
type Membership struct {
	MessID   int64
	UserID   int64
	RoleID   int64
	Admin    bool
	JoinedAt time.Time
}

// Scope is the per-request tenant context: the acting user, the mess being
// operated on and the billing period in effect. It is resolved once by the
// middleware and must not be mutated afterwards.
type Scope struct {
	UserID int64
	Mess   Mess
	Period Period
	RoleID int64
	Admin  bool
}

// ActorID returns the acting user's id.
func (s *Scope) ActorID() int64 { return s.UserID }

// MessID returns the id of the mess being operated on.
func (s *Scope) MessID() int64 { return s.Mess.ID }

// ActorRole returns the actor's role id within the mess.
func (s *Scope) ActorRole() int64 { return s.RoleID }

// IsAdmin reports whether the actor administers the mess.
func (s *Scope) IsAdmin() bool { return s.Admin }

// PeriodCode returns the billing period identifier counters are keyed by.
func (s *Scope) PeriodCode() string { return s.Period.Code }

// ErrScopeMissing indicates a handler ran without a resolved tenant scope.
// This is an integration bug, not an authorization denial.
var ErrScopeMissing = errors.New("tenant: scope not resolved for request")

// ErrNotMember indicates the user does not belong to the requested mess.
var ErrNotMember = errors.New("tenant: user is not a member of mess")
