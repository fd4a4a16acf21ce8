package authz

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/messdesk/messdesk/internal/shared"
)

// RoleStore supplies role definitions for permission evaluation.
type RoleStore interface {
	GetRole(ctx context.Context, roleID int64) (Role, error)
}

// AuditSink records authorization events worth tracing, in particular
// cross-tenant reference attempts.
type AuditSink interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Evaluator decides whether an actor holds a permission in the current mess
// and composes the ownership predicates controllers guard mutations with.
// It is stateless; the tenant scope arrives as an explicit argument.
type Evaluator struct {
	store  RoleStore
	audit  AuditSink
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator. audit may be nil.
func NewEvaluator(store RoleStore, audit AuditSink, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, audit: audit, logger: logger}
}

// Can reports whether the actor's role in the current mess grants perm.
// Mess admins hold every permission. Missing scope, missing role and store
// failures all evaluate to false; Can never errors for "not permitted".
func (e *Evaluator) Can(ctx context.Context, scope Scope, perm Permission) bool {
	if scope == nil || scope.ActorID() == 0 {
		return false
	}
	if scope.IsAdmin() {
		return true
	}
	role, err := e.store.GetRole(ctx, scope.ActorRole())
	if err != nil {
		e.logger.Error("authz: load role", slog.Int64("role_id", scope.ActorRole()), slog.Any("error", err))
		return false
	}
	if role.MessID != scope.MessID() {
		return false
	}
	return role.HasPermission(perm)
}

// CanAll reports whether Can holds for every permission. Empty input is
// vacuously true.
func (e *Evaluator) CanAll(ctx context.Context, scope Scope, perms ...Permission) bool {
	for _, p := range perms {
		if !e.Can(ctx, scope, p) {
			return false
		}
	}
	return true
}

// CanAny reports whether Can holds for at least one permission. Empty input
// is false.
func (e *Evaluator) CanAny(ctx context.Context, scope Scope, perms ...Permission) bool {
	for _, p := range perms {
		if e.Can(ctx, scope, p) {
			return true
		}
	}
	return false
}

// HasPermission is the nil-safe variant used where the actor may be
// anonymous. Anonymous always yields false, never an error.
func (e *Evaluator) HasPermission(ctx context.Context, scope Scope, perm Permission) bool {
	if scope == nil {
		return false
	}
	return e.Can(ctx, scope, perm)
}

// Permissions returns the effective permission set of the actor, or an error
// when the role store fails. The HTTP middleware uses this error-returning
// path so store outages surface as 500s rather than silent denials.
func (e *Evaluator) Permissions(ctx context.Context, scope Scope) ([]Permission, error) {
	if scope == nil || scope.ActorID() == 0 {
		return nil, nil
	}
	if scope.IsAdmin() {
		return All(), nil
	}
	role, err := e.store.GetRole(ctx, scope.ActorRole())
	if err != nil {
		return nil, err
	}
	if role.MessID != scope.MessID() {
		return nil, nil
	}
	if role.Admin {
		return All(), nil
	}
	return role.Permissions, nil
}

// CanAccessModel is the standard compound check before a mutation: the actor
// holds perm AND the record belongs to the actor's current mess. A tenant
// mismatch is recorded in the audit trail but surfaces as a plain false.
func (e *Evaluator) CanAccessModel(ctx context.Context, scope Scope, perm Permission, rec Model) bool {
	if scope == nil || rec == nil {
		return false
	}
	if !e.Can(ctx, scope, perm) {
		return false
	}
	if rec.TenantID() != scope.MessID() {
		e.recordTenantMismatch(ctx, scope, rec)
		return false
	}
	return true
}

// CanAccessOwnModel additionally requires the record's ownerAttr field to
// reference the acting user. Used for "owner-or-permission" policies.
func (e *Evaluator) CanAccessOwnModel(ctx context.Context, scope Scope, perm Permission, rec Model, ownerAttr string) bool {
	if !e.CanAccessModel(ctx, scope, perm, rec) {
		return false
	}
	return BelongsTo(rec, scope.ActorID(), ownerAttr)
}

// CanAnyAccessModel ORs CanAccessModel across several permissions, for
// actions permitted by more than one role.
func (e *Evaluator) CanAnyAccessModel(ctx context.Context, scope Scope, perms []Permission, rec Model) bool {
	for _, p := range perms {
		if e.CanAccessModel(ctx, scope, p, rec) {
			return true
		}
	}
	return false
}

func (e *Evaluator) recordTenantMismatch(ctx context.Context, scope Scope, rec Model) {
	e.logger.Warn("authz: cross-tenant record reference",
		slog.Int64("actor_id", scope.ActorID()),
		slog.Int64("actor_mess", scope.MessID()),
		slog.Int64("record_mess", rec.TenantID()))
	if e.audit == nil {
		return
	}
	err := e.audit.Record(ctx, shared.AuditLog{
		MessID:   scope.MessID(),
		ActorID:  scope.ActorID(),
		Action:   shared.AuditTenantMismatch,
		Entity:   "model",
		EntityID: strconv.FormatInt(rec.TenantID(), 10),
	})
	if err != nil {
		e.logger.Error("authz: audit tenant mismatch", slog.Any("error", err))
	}
}
