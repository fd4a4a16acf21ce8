package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository provides PostgreSQL backed persistence for subscriptions and
// feature usage counters.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ActiveSubscription returns the mess's active, unexpired subscription.
func (r *PGRepository) ActiveSubscription(ctx context.Context, messID int64, now time.Time) (Subscription, error) {
	var s Subscription
	var plan string
	err := r.pool.QueryRow(ctx,
		`SELECT id, mess_id, plan, package_code, is_trial, is_active, starts_at, expires_at, created_at
		   FROM subscriptions
		  WHERE mess_id = $1 AND is_active AND starts_at <= $2 AND expires_at > $2`,
		messID, now).
		Scan(&s.ID, &s.MessID, &plan, &s.Package, &s.Trial, &s.Active, &s.StartsAt, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrNoSubscription
		}
		return Subscription{}, err
	}
	s.Plan = Plan(plan)
	return s, nil
}

// FeatureUsed reads the usage counter, zero when absent.
func (r *PGRepository) FeatureUsed(ctx context.Context, messID int64, period string, f Feature) (int, error) {
	var used int
	err := r.pool.QueryRow(ctx,
		`SELECT used FROM feature_usages WHERE mess_id = $1 AND period = $2 AND feature = $3`,
		messID, period, string(f)).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return used, nil
}

// AllUsage returns every counter of the mess for the period.
func (r *PGRepository) AllUsage(ctx context.Context, messID int64, period string) (map[Feature]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT feature, used FROM feature_usages WHERE mess_id = $1 AND period = $2`,
		messID, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	usage := make(map[Feature]int)
	for rows.Next() {
		var feature string
		var used int
		if err := rows.Scan(&feature, &used); err != nil {
			return nil, err
		}
		usage[Feature(feature)] = used
	}
	return usage, rows.Err()
}

// IncrementUsage performs the conditional increment as one statement so two
// concurrent requests cannot jointly overshoot the limit. The upsert's WHERE
// clause rejects the update once the counter reaches the limit; the rejected
// path returns no row.
func (r *PGRepository) IncrementUsage(ctx context.Context, messID int64, period string, f Feature, usageLimit *int) (int, bool, error) {
	var used int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO feature_usages (mess_id, period, feature, used, updated_at)
		 VALUES ($1, $2, $3, 1, NOW())
		 ON CONFLICT (mess_id, period, feature)
		 DO UPDATE SET used = feature_usages.used + 1, updated_at = NOW()
		  WHERE $4::int IS NULL OR feature_usages.used < $4
		 RETURNING used`,
		messID, period, string(f), usageLimit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return used, true, nil
}
