package tenant

import (
	"context"

	"github.com/messdesk/messdesk/internal/platform/db"
)

// Repository abstracts mess and membership persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetMess(ctx context.Context, id int64) (Mess, error)
	GetMembership(ctx context.Context, messID, userID int64) (Membership, error)
	ListMembers(ctx context.Context, messID int64) ([]Membership, error)
	ListMessesForUser(ctx context.Context, userID int64) ([]Mess, error)
	InsertMembership(ctx context.Context, m Membership) error
	UpdateMembershipRole(ctx context.Context, messID, userID, roleID int64) error
	RemoveMembership(ctx context.Context, messID, userID int64) error
	CountMembers(ctx context.Context, messID int64) (int, error)
}

// TxRepository exposes the mutations available inside a creation transaction.
type TxRepository interface {
	// Querier hands the underlying transaction to collaborating seeders.
	Querier() db.Querier
	InsertMess(ctx context.Context, m Mess) (Mess, error)
	InsertMembership(ctx context.Context, m Membership) error
}
