package subscription

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/platform/db"
	"github.com/messdesk/messdesk/internal/shared"
)

var (
	// ErrUnknownPackage indicates a subscribe request for a package that is
	// not in the catalogue.
	ErrUnknownPackage = errors.New("subscription: unknown package")
	// ErrTrialConsumed indicates the mess already used its trial once.
	ErrTrialConsumed = errors.New("subscription: trial already consumed")
)

// Cache invalidates cached entitlement snapshots after a plan change.
type Cache interface {
	Invalidate(ctx context.Context, messID int64, period string)
}

// Service manages the subscription lifecycle of a mess.
type Service struct {
	repo   Repository
	cache  Cache
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service. cache and audit may be nil.
func NewService(repo Repository, cache Cache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger, now: time.Now}
}

// StartFree opens the free starter subscription for a freshly created mess.
// It runs inside the mess-creation transaction, so a failure rolls back the
// mess as well: no mess ever exists without a subscription row.
func (s *Service) StartFree(ctx context.Context, q db.Querier, messID int64, now time.Time) error {
	pkg, ok := entitlement.PackageByCode("basic-free")
	if !ok {
		return ErrUnknownPackage
	}
	return s.repo.InsertWith(ctx, q, subscriptionFor(messID, pkg, now))
}

// Current returns the active subscription of the mess.
func (s *Service) Current(ctx context.Context, messID int64) (entitlement.Subscription, error) {
	return s.repo.Current(ctx, messID, s.now())
}

// History returns past and present subscriptions, newest first.
func (s *Service) History(ctx context.Context, messID int64) ([]entitlement.Subscription, error) {
	return s.repo.History(ctx, messID)
}

// Subscribe switches the mess to the given package, superseding the current
// subscription. The trial package can be taken at most once per mess.
func (s *Service) Subscribe(ctx context.Context, actorID, messID int64, packageCode, periodCode string) (entitlement.Subscription, error) {
	pkg, ok := entitlement.PackageByCode(packageCode)
	if !ok {
		return entitlement.Subscription{}, ErrUnknownPackage
	}
	if pkg.Trial {
		used, err := s.trialConsumed(ctx, messID)
		if err != nil {
			return entitlement.Subscription{}, err
		}
		if used {
			return entitlement.Subscription{}, ErrTrialConsumed
		}
	}

	created, err := s.repo.Replace(ctx, subscriptionFor(messID, pkg, s.now()))
	if err != nil {
		return entitlement.Subscription{}, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, messID, periodCode)
	}
	s.recordAudit(ctx, messID, actorID, created)
	s.logger.Info("plan changed",
		slog.Int64("mess_id", messID),
		slog.String("package", pkg.Code),
		slog.String("plan", string(pkg.Plan)))
	return created, nil
}

// Renew extends the current subscription by taking the same package again.
// The active row's expiry is pushed forward in place, so the mess keeps an
// in-effect subscription for the whole already-paid window; an expired
// subscription cannot be renewed, the package is taken again via Subscribe.
func (s *Service) Renew(ctx context.Context, actorID, messID int64, period string) (entitlement.Subscription, error) {
	current, err := s.repo.Current(ctx, messID, s.now())
	if err != nil {
		return entitlement.Subscription{}, err
	}
	pkg, ok := entitlement.PackageByCode(current.Package)
	if !ok {
		return entitlement.Subscription{}, ErrUnknownPackage
	}
	if pkg.Trial {
		return entitlement.Subscription{}, ErrTrialConsumed
	}

	renewed, err := s.repo.Extend(ctx, current.ID, current.ExpiresAt.AddDate(0, 0, pkg.DurationDays))
	if err != nil {
		return entitlement.Subscription{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, messID, period)
	}
	s.recordAudit(ctx, messID, actorID, renewed)
	return renewed, nil
}

func (s *Service) trialConsumed(ctx context.Context, messID int64) (bool, error) {
	history, err := s.repo.History(ctx, messID)
	if err != nil {
		return false, err
	}
	for _, sub := range history {
		if sub.Trial {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) recordAudit(ctx context.Context, messID, actorID int64, sub entitlement.Subscription) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		MessID:   messID,
		ActorID:  actorID,
		Action:   shared.AuditPlanChanged,
		Entity:   "subscription",
		EntityID: strconv.FormatInt(sub.ID, 10),
		Meta:     map[string]any{"plan": string(sub.Plan), "package": sub.Package},
	})
	if err != nil {
		s.logger.Error("subscription: audit record", slog.Any("error", err))
	}
}

func subscriptionFor(messID int64, pkg entitlement.Package, now time.Time) entitlement.Subscription {
	return entitlement.Subscription{
		MessID:    messID,
		Plan:      pkg.Plan,
		Package:   pkg.Code,
		Trial:     pkg.Trial,
		Active:    true,
		StartsAt:  now,
		ExpiresAt: now.AddDate(0, 0, pkg.DurationDays),
	}
}
