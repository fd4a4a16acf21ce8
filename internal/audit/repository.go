package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineFilter = `
	  WHERE mess_id = $1
	    AND ($2 = '' OR action = $2)
	    AND ($3 = '' OR entity = $3)
	    AND ($4::timestamptz IS NULL OR occurred_at >= $4)
	    AND ($5::timestamptz IS NULL OR occurred_at < $5)`

func (r *PGRepository) TimelineWindow(ctx context.Context, messID int64, f TimelineFilters, limit, offset int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT occurred_at, actor_id, action, entity, entity_id, meta
		   FROM audit_logs`+timelineFilter+`
		  ORDER BY occurred_at DESC, id DESC
		  LIMIT $6 OFFSET $7`,
		messID, f.Action, f.Entity, nullableTime(f.From), nullableTime(f.To), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.At, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepository) CountTimeline(ctx context.Context, messID int64, f TimelineFilters) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs`+timelineFilter,
		messID, f.Action, f.Entity, nullableTime(f.From), nullableTime(f.To)).Scan(&total)
	return total, err
}
