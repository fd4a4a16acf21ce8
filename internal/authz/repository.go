package authz

import (
	"context"

	"github.com/messdesk/messdesk/internal/platform/db"
)

// Repository abstracts role persistence. It embeds RoleStore so the same
// implementation backs both the role service and the Evaluator.
type Repository interface {
	RoleStore

	ListRoles(ctx context.Context, messID int64) ([]Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, messID, roleID int64) error
	RoleInUse(ctx context.Context, roleID int64) (bool, error)
	// SeedRoles inserts role definitions using q, which may be a transaction
	// owned by the mess-creation flow. Returns role ids keyed by name.
	SeedRoles(ctx context.Context, q db.Querier, messID int64, defs []DefaultRole) (map[string]int64, error)
}
