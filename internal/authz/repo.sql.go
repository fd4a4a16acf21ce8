package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/messdesk/messdesk/internal/platform/db"
	"github.com/messdesk/messdesk/internal/shared"
)

// PGRepository provides PostgreSQL backed role persistence. Permission keys
// are stored as a text[] column; the catalogue itself lives in code.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, roleID int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT id, mess_id, name, is_admin, permissions, created_at, updated_at FROM roles WHERE id = $1`,
		roleID))
}

// ListRoles returns the roles of a mess ordered by id.
func (r *PGRepository) ListRoles(ctx context.Context, messID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, mess_id, name, is_admin, permissions, created_at, updated_at FROM roles WHERE mess_id = $1 ORDER BY id`,
		messID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a custom role.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (mess_id, name, is_admin, permissions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 RETURNING id, mess_id, name, is_admin, permissions, created_at, updated_at`,
		role.MessID, role.Name, role.Admin, permissionKeys(role.Permissions)))
}

// UpdateRole replaces the role's name and permission set.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $3, permissions = $4, updated_at = NOW()
		  WHERE id = $1 AND mess_id = $2
		 RETURNING id, mess_id, name, is_admin, permissions, created_at, updated_at`,
		role.ID, role.MessID, role.Name, permissionKeys(role.Permissions)))
}

// DeleteRole removes a role belonging to the mess.
func (r *PGRepository) DeleteRole(ctx context.Context, messID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND mess_id = $2`, roleID, messID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RoleInUse reports whether any membership still references the role.
func (r *PGRepository) RoleInUse(ctx context.Context, roleID int64) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memberships WHERE role_id = $1`, roleID).Scan(&count)
	return count > 0, err
}

// SeedRoles inserts the default role definitions inside the caller's
// transaction and returns the new ids keyed by role name.
func (r *PGRepository) SeedRoles(ctx context.Context, q db.Querier, messID int64, defs []DefaultRole) (map[string]int64, error) {
	ids := make(map[string]int64, len(defs))
	for _, def := range defs {
		var id int64
		err := q.QueryRow(ctx,
			`INSERT INTO roles (mess_id, name, is_admin, permissions, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
			messID, def.Name, def.Admin, permissionKeys(def.Permissions)).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids[def.Name] = id
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var keys []string
	err := row.Scan(&role.ID, &role.MessID, &role.Name, &role.Admin, &keys, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	role.Permissions = ParsePermissions(keys)
	return role, nil
}
