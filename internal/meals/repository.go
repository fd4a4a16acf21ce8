package meals

import (
	"context"
	"time"
)

// Repository abstracts meal log persistence.
type Repository interface {
	Insert(ctx context.Context, log MealLog) (MealLog, error)
	Get(ctx context.Context, id int64) (MealLog, error)
	Update(ctx context.Context, log MealLog) error
	Delete(ctx context.Context, id int64) error
	// ListByPeriod returns the mess's entries with dates in [from, to).
	ListByPeriod(ctx context.Context, messID int64, from, to time.Time) ([]MealLog, error)
	// SummarizeByPeriod aggregates meal units per member for [from, to).
	SummarizeByPeriod(ctx context.Context, messID int64, from, to time.Time) ([]Summary, error)
}
