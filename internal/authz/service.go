package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/messdesk/messdesk/internal/platform/db"
)

var (
	// ErrRoleProtected indicates an attempt to modify or delete the admin role.
	ErrRoleProtected = errors.New("authz: admin role cannot be modified")
	// ErrRoleInUse indicates a role still assigned to members.
	ErrRoleInUse = errors.New("authz: role still assigned to members")
	// ErrNameRequired indicates a role without a name.
	ErrNameRequired = errors.New("authz: role name required")
)

// Service manages the mutable, per-mess role catalogue. Callers are expected
// to have passed the permission_management gate already.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListRoles returns the roles of a mess.
func (s *Service) ListRoles(ctx context.Context, messID int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, messID)
}

// GetRole fetches a role, verifying it belongs to the mess.
func (s *Service) GetRole(ctx context.Context, messID, roleID int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if role.MessID != messID {
		return Role{}, errors.New("authz: role belongs to another mess")
	}
	return role, nil
}

// CreateRole adds a custom role with the given permission keys. Unknown keys
// are dropped.
func (s *Service) CreateRole(ctx context.Context, messID int64, name string, keys []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, ErrNameRequired
	}
	return s.repo.CreateRole(ctx, Role{
		MessID:      messID,
		Name:        name,
		Permissions: ParsePermissions(keys),
	})
}

// UpdateRole replaces the name and permission set of a custom role. The
// seeded admin role is immutable.
func (s *Service) UpdateRole(ctx context.Context, messID, roleID int64, name string, keys []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, ErrNameRequired
	}
	existing, err := s.GetRole(ctx, messID, roleID)
	if err != nil {
		return Role{}, err
	}
	if existing.Admin {
		return Role{}, ErrRoleProtected
	}
	return s.repo.UpdateRole(ctx, Role{
		ID:          roleID,
		MessID:      messID,
		Name:        name,
		Permissions: ParsePermissions(keys),
	})
}

// DeleteRole removes a custom role that no member holds.
func (s *Service) DeleteRole(ctx context.Context, messID, roleID int64) error {
	existing, err := s.GetRole(ctx, messID, roleID)
	if err != nil {
		return err
	}
	if existing.Admin {
		return ErrRoleProtected
	}
	inUse, err := s.repo.RoleInUse(ctx, roleID)
	if err != nil {
		return err
	}
	if inUse {
		return ErrRoleInUse
	}
	return s.repo.DeleteRole(ctx, messID, roleID)
}

// SeedDefaultRoles installs the default role table for a new mess inside the
// caller's transaction and returns the admin and member role ids.
func (s *Service) SeedDefaultRoles(ctx context.Context, q db.Querier, messID int64) (adminRoleID, memberRoleID int64, err error) {
	ids, err := s.repo.SeedRoles(ctx, q, messID, DefaultRoles())
	if err != nil {
		return 0, 0, err
	}
	return ids[RoleAdmin], ids[RoleMember], nil
}
