package authz

import "time"

// Role is a named permission bundle scoped to one mess.
type Role struct {
	ID          int64
	MessID      int64
	Name        string
	Admin       bool
	Permissions []Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission reports whether the role grants p. Admin roles grant
// everything.
func (r Role) HasPermission(p Permission) bool {
	if r.Admin {
		return true
	}
	for _, held := range r.Permissions {
		if held == p {
			return true
		}
	}
	return false
}

// Scope describes the acting user within the current mess. The tenant
// middleware resolves it once per request; a nil Scope means anonymous or
// unresolved and always evaluates to denied.
type Scope interface {
	ActorID() int64
	MessID() int64
	ActorRole() int64
	IsAdmin() bool
}

// Model is implemented by records subject to ownership and tenant-isolation
// predicates. Attribute lookups are explicit per type rather than reflective.
type Model interface {
	// Attribute returns a named field value; ok is false for unknown names.
	Attribute(name string) (value any, ok bool)
	// TenantID returns the mess the record belongs to.
	TenantID() int64
}
