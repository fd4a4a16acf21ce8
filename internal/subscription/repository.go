package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/platform/db"
)

// ErrConcurrentChange indicates two plan changes raced; the partial unique
// index on active subscriptions rejected the second insert.
var ErrConcurrentChange = errors.New("subscription: concurrent plan change")

// Repository abstracts subscription persistence.
type Repository interface {
	Current(ctx context.Context, messID int64, now time.Time) (entitlement.Subscription, error)
	// Replace deactivates the active subscription (if any) and inserts the
	// new one atomically. The superseded row is kept for history.
	Replace(ctx context.Context, sub entitlement.Subscription) (entitlement.Subscription, error)
	// InsertWith inserts a subscription using q, which may be a transaction
	// owned by the mess-creation flow.
	InsertWith(ctx context.Context, q db.Querier, sub entitlement.Subscription) error
	// Extend pushes the active subscription's expiry forward in place, so the
	// row stays in effect for the whole already-paid window.
	Extend(ctx context.Context, subscriptionID int64, expiresAt time.Time) (entitlement.Subscription, error)
	History(ctx context.Context, messID int64) ([]entitlement.Subscription, error)
}

// PGRepository provides PostgreSQL backed subscription persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Current returns the active, unexpired subscription of the mess.
func (r *PGRepository) Current(ctx context.Context, messID int64, now time.Time) (entitlement.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx,
		`SELECT id, mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at
		   FROM subscriptions
		  WHERE mess_id = $1 AND is_active AND starts_at <= $2 AND expires_at > $2`,
		messID, now))
}

// Replace supersedes the active subscription inside one transaction.
func (r *PGRepository) Replace(ctx context.Context, sub entitlement.Subscription) (entitlement.Subscription, error) {
	var created entitlement.Subscription
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE subscriptions SET is_active = FALSE WHERE mess_id = $1 AND is_active`,
			sub.MessID); err != nil {
			return err
		}
		var err error
		created, err = scanSubscription(tx.QueryRow(ctx,
			`INSERT INTO subscriptions (mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at)
			 VALUES ($1, $2, $3, $4, TRUE, $5, $6, NOW())
			 RETURNING id, mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at`,
			sub.MessID, string(sub.Plan), sub.Package, sub.Trial, sub.StartsAt, sub.ExpiresAt))
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_subscriptions_active" {
			return entitlement.Subscription{}, ErrConcurrentChange
		}
		return entitlement.Subscription{}, err
	}
	return created, nil
}

// Extend moves the expiry of a still-active subscription. A vanished row
// means a plan change raced the renewal.
func (r *PGRepository) Extend(ctx context.Context, subscriptionID int64, expiresAt time.Time) (entitlement.Subscription, error) {
	sub, err := scanSubscription(r.pool.QueryRow(ctx,
		`UPDATE subscriptions SET expires_at = $2
		  WHERE id = $1 AND is_active
		 RETURNING id, mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at`,
		subscriptionID, expiresAt))
	if errors.Is(err, entitlement.ErrNoSubscription) {
		return entitlement.Subscription{}, ErrConcurrentChange
	}
	return sub, err
}

// InsertWith inserts a subscription inside the caller's transaction.
func (r *PGRepository) InsertWith(ctx context.Context, q db.Querier, sub entitlement.Subscription) error {
	_, err := q.Exec(ctx,
		`INSERT INTO subscriptions (mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, TRUE, $5, $6, NOW())`,
		sub.MessID, string(sub.Plan), sub.Package, sub.Trial, sub.StartsAt, sub.ExpiresAt)
	return err
}

// History returns every subscription of the mess, newest first.
func (r *PGRepository) History(ctx context.Context, messID int64) ([]entitlement.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at
		   FROM subscriptions WHERE mess_id = $1 ORDER BY created_at DESC`, messID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []entitlement.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (entitlement.Subscription, error) {
	var s entitlement.Subscription
	var plan string
	err := row.Scan(&s.ID, &s.MessID, &plan, &s.Package, &s.Trial, &s.Active, &s.StartsAt, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entitlement.Subscription{}, entitlement.ErrNoSubscription
		}
		return entitlement.Subscription{}, err
	}
	s.Plan = entitlement.Plan(plan)
	return s, nil
}
