package meals

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/messdesk/messdesk/internal/tenant"
)

// Service applies meal log business rules. Authorization and quota gating
// stay in the handler; the service assumes the caller already passed them.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Log records a meal entry for the scoped member. The date must fall inside
// the current billing period so the metered counter and the rows stay in
// step.
func (s *Service) Log(ctx context.Context, scope *tenant.Scope, date time.Time, mealType MealType, count int, note string) (MealLog, error) {
	if !mealType.Valid() || count < 1 || count > 20 {
		return MealLog{}, ErrInvalidMeal
	}
	if !scope.Period.Contains(date) {
		return MealLog{}, ErrOutsidePeriod
	}
	return s.repo.Insert(ctx, MealLog{
		MessID: scope.MessID(),
		UserID: scope.ActorID(),
		Date:   date,
		Type:   mealType,
		Count:  count,
		Note:   strings.TrimSpace(note),
	})
}

// Get fetches a single entry.
func (s *Service) Get(ctx context.Context, id int64) (MealLog, error) {
	return s.repo.Get(ctx, id)
}

// Update rewrites an entry in place. Ownership and tenancy were already
// checked by the handler against the stored record.
func (s *Service) Update(ctx context.Context, existing MealLog, date time.Time, mealType MealType, count int, note string) error {
	if !mealType.Valid() || count < 1 || count > 20 {
		return ErrInvalidMeal
	}
	existing.Date = date
	existing.Type = mealType
	existing.Count = count
	existing.Note = strings.TrimSpace(note)
	return s.repo.Update(ctx, existing)
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ListPeriod returns the mess's entries for the scoped billing period.
func (s *Service) ListPeriod(ctx context.Context, scope *tenant.Scope) ([]MealLog, error) {
	return s.repo.ListByPeriod(ctx, scope.MessID(), scope.Period.Start, scope.Period.End)
}

// Summary aggregates per-member meal units for the scoped billing period.
func (s *Service) Summary(ctx context.Context, scope *tenant.Scope) ([]Summary, error) {
	return s.repo.SummarizeByPeriod(ctx, scope.MessID(), scope.Period.Start, scope.Period.End)
}
