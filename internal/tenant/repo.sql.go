package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/messdesk/messdesk/internal/platform/db"
	"github.com/messdesk/messdesk/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for messes.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn against a transactional repository view.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

// GetMess fetches a mess by ID.
func (r *PGRepository) GetMess(ctx context.Context, id int64) (Mess, error) {
	var m Mess
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, anchor_day, created_by, created_at, updated_at FROM messes WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.AnchorDay, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mess{}, shared.ErrNotFound
		}
		return Mess{}, err
	}
	return m, nil
}

// GetMembership fetches the membership row for (mess, user).
func (r *PGRepository) GetMembership(ctx context.Context, messID, userID int64) (Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx,
		`SELECT mess_id, user_id, role_id, is_admin, joined_at FROM memberships WHERE mess_id = $1 AND user_id = $2`,
		messID, userID).
		Scan(&m.MessID, &m.UserID, &m.RoleID, &m.Admin, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotMember
		}
		return Membership{}, err
	}
	return m, nil
}

// ListMembers returns memberships of a mess ordered by join time.
func (r *PGRepository) ListMembers(ctx context.Context, messID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT mess_id, user_id, role_id, is_admin, joined_at FROM memberships WHERE mess_id = $1 ORDER BY joined_at`,
		messID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.MessID, &m.UserID, &m.RoleID, &m.Admin, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMessesForUser returns every mess the user belongs to.
func (r *PGRepository) ListMessesForUser(ctx context.Context, userID int64) ([]Mess, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.name, m.anchor_day, m.created_by, m.created_at, m.updated_at
		   FROM messes m JOIN memberships mm ON mm.mess_id = m.id
		  WHERE mm.user_id = $1 ORDER BY m.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messes []Mess
	for rows.Next() {
		var m Mess
		if err := rows.Scan(&m.ID, &m.Name, &m.AnchorDay, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		messes = append(messes, m)
	}
	return messes, rows.Err()
}

// InsertMembership adds a member outside a creation transaction.
func (r *PGRepository) InsertMembership(ctx context.Context, m Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO memberships (mess_id, user_id, role_id, is_admin, joined_at) VALUES ($1, $2, $3, $4, NOW())`,
		m.MessID, m.UserID, m.RoleID, m.Admin)
	return err
}

// UpdateMembershipRole changes a member's role.
func (r *PGRepository) UpdateMembershipRole(ctx context.Context, messID, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE memberships SET role_id = $3 WHERE mess_id = $1 AND user_id = $2`,
		messID, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// RemoveMembership deletes a member from the mess.
func (r *PGRepository) RemoveMembership(ctx context.Context, messID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM memberships WHERE mess_id = $1 AND user_id = $2`, messID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// CountMembers returns the current member count of a mess.
func (r *PGRepository) CountMembers(ctx context.Context, messID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memberships WHERE mess_id = $1`, messID).Scan(&count)
	return count, err
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) Querier() db.Querier {
	return r.tx
}

func (r *pgTxRepository) InsertMess(ctx context.Context, m Mess) (Mess, error) {
	err := r.tx.QueryRow(ctx,
		`INSERT INTO messes (name, anchor_day, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING id, name, anchor_day, created_by, created_at, updated_at`,
		m.Name, m.AnchorDay, m.CreatedBy).
		Scan(&m.ID, &m.Name, &m.AnchorDay, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *pgTxRepository) InsertMembership(ctx context.Context, m Membership) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO memberships (mess_id, user_id, role_id, is_admin, joined_at) VALUES ($1, $2, $3, $4, NOW())`,
		m.MessID, m.UserID, m.RoleID, m.Admin)
	return err
}
