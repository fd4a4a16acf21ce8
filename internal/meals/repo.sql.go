package meals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/messdesk/messdesk/internal/shared"
)

// PGRepository provides PostgreSQL backed meal log persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, log MealLog) (MealLog, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO meal_logs (mess_id, user_id, meal_date, meal_type, meal_count, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		log.MessID, log.UserID, log.Date, string(log.Type), log.Count, log.Note,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
	return log, err
}

func (r *PGRepository) Get(ctx context.Context, id int64) (MealLog, error) {
	var log MealLog
	var mealType string
	err := r.pool.QueryRow(ctx,
		`SELECT id, mess_id, user_id, meal_date, meal_type, meal_count, note, created_at, updated_at
		   FROM meal_logs WHERE id = $1`, id,
	).Scan(&log.ID, &log.MessID, &log.UserID, &log.Date, &mealType, &log.Count, &log.Note, &log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MealLog{}, shared.ErrNotFound
		}
		return MealLog{}, err
	}
	log.Type = MealType(mealType)
	return log, nil
}

func (r *PGRepository) Update(ctx context.Context, log MealLog) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meal_logs
		    SET meal_date = $2, meal_type = $3, meal_count = $4, note = $5, updated_at = NOW()
		  WHERE id = $1`,
		log.ID, log.Date, string(log.Type), log.Count, log.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meal_logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListByPeriod(ctx context.Context, messID int64, from, to time.Time) ([]MealLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, mess_id, user_id, meal_date, meal_type, meal_count, note, created_at, updated_at
		   FROM meal_logs
		  WHERE mess_id = $1 AND meal_date >= $2 AND meal_date < $3
		  ORDER BY meal_date, user_id`,
		messID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []MealLog
	for rows.Next() {
		var log MealLog
		var mealType string
		if err := rows.Scan(&log.ID, &log.MessID, &log.UserID, &log.Date, &mealType, &log.Count, &log.Note, &log.CreatedAt, &log.UpdatedAt); err != nil {
			return nil, err
		}
		log.Type = MealType(mealType)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (r *PGRepository) SummarizeByPeriod(ctx context.Context, messID int64, from, to time.Time) ([]Summary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COALESCE(SUM(meal_count), 0)
		   FROM meal_logs
		  WHERE mess_id = $1 AND meal_date >= $2 AND meal_date < $3
		  GROUP BY user_id
		  ORDER BY user_id`,
		messID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.UserID, &s.Total); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
