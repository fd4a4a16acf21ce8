package tenant

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/messdesk/messdesk/internal/platform/db"
	"github.com/messdesk/messdesk/internal/shared"
)

// RoleSeeder installs the default role table for a new mess inside the
// creation transaction. Implemented by the authz service.
type RoleSeeder interface {
	SeedDefaultRoles(ctx context.Context, q db.Querier, messID int64) (adminRoleID, memberRoleID int64, err error)
}

// SubscriptionStarter opens the free starter subscription for a new mess
// inside the creation transaction. Implemented by the subscription service.
type SubscriptionStarter interface {
	StartFree(ctx context.Context, q db.Querier, messID int64, now time.Time) error
}

var (
	// ErrNameRequired indicates a mess without a name.
	ErrNameRequired = errors.New("tenant: mess name required")
	// ErrAdminImmutable indicates an attempt to demote or remove the admin.
	ErrAdminImmutable = errors.New("tenant: mess admin cannot be changed")
	// ErrAlreadyMember indicates the user already belongs to the mess.
	ErrAlreadyMember = errors.New("tenant: user already a member")
)

// Service orchestrates mess lifecycle and membership.
type Service struct {
	repo   Repository
	roles  RoleSeeder
	subs   SubscriptionStarter
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, roles RoleSeeder, subs SubscriptionStarter, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, subs: subs, audit: audit, logger: logger, now: time.Now}
}

// CreateMess creates a mess, seeds its default roles, makes the creator the
// admin and opens the free starter subscription — all in one transaction.
func (s *Service) CreateMess(ctx context.Context, name string, anchorDay int, creatorID int64) (Mess, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Mess{}, ErrNameRequired
	}
	if anchorDay < 1 || anchorDay > 28 {
		anchorDay = DefaultAnchorDay
	}

	var created Mess
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mess, err := tx.InsertMess(ctx, Mess{Name: name, AnchorDay: anchorDay, CreatedBy: creatorID})
		if err != nil {
			return err
		}
		adminRoleID, _, err := s.roles.SeedDefaultRoles(ctx, tx.Querier(), mess.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertMembership(ctx, Membership{
			MessID: mess.ID,
			UserID: creatorID,
			RoleID: adminRoleID,
			Admin:  true,
		}); err != nil {
			return err
		}
		if err := s.subs.StartFree(ctx, tx.Querier(), mess.ID, s.now()); err != nil {
			return err
		}
		created = mess
		return nil
	})
	if err != nil {
		return Mess{}, err
	}
	s.logger.Info("mess created", slog.Int64("mess_id", created.ID), slog.Int64("created_by", creatorID))
	return created, nil
}

// GetMess fetches a mess by id.
func (s *Service) GetMess(ctx context.Context, id int64) (Mess, error) {
	return s.repo.GetMess(ctx, id)
}

// ListMessesForUser returns every mess the user belongs to.
func (s *Service) ListMessesForUser(ctx context.Context, userID int64) ([]Mess, error) {
	return s.repo.ListMessesForUser(ctx, userID)
}

// Members returns the memberships of a mess.
func (s *Service) Members(ctx context.Context, messID int64) ([]Membership, error) {
	return s.repo.ListMembers(ctx, messID)
}

// MemberCount returns the number of members in a mess.
func (s *Service) MemberCount(ctx context.Context, messID int64) (int, error) {
	return s.repo.CountMembers(ctx, messID)
}

// ResolveScope builds the per-request tenant scope for (mess, user). It is
// called exactly once per request by the middleware.
func (s *Service) ResolveScope(ctx context.Context, messID, userID int64) (*Scope, error) {
	membership, err := s.repo.GetMembership(ctx, messID, userID)
	if err != nil {
		return nil, err
	}
	mess, err := s.repo.GetMess(ctx, messID)
	if err != nil {
		return nil, err
	}
	return &Scope{
		UserID: userID,
		Mess:   mess,
		Period: PeriodFor(s.now(), mess.AnchorDay),
		RoleID: membership.RoleID,
		Admin:  membership.Admin,
	}, nil
}

// AddMember joins a user to the mess with the given role. The handler gates
// this behind the member-limit feature before calling.
func (s *Service) AddMember(ctx context.Context, messID, userID, roleID int64) error {
	if _, err := s.repo.GetMembership(ctx, messID, userID); err == nil {
		return ErrAlreadyMember
	} else if !errors.Is(err, ErrNotMember) {
		return err
	}
	return s.repo.InsertMembership(ctx, Membership{MessID: messID, UserID: userID, RoleID: roleID})
}

// ChangeMemberRole moves a member to another role. The admin's membership
// is immutable.
func (s *Service) ChangeMemberRole(ctx context.Context, actorID int64, messID, userID, roleID int64) error {
	membership, err := s.repo.GetMembership(ctx, messID, userID)
	if err != nil {
		return err
	}
	if membership.Admin {
		return ErrAdminImmutable
	}
	if err := s.repo.UpdateMembershipRole(ctx, messID, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, messID, actorID, shared.AuditRoleChanged, userID, map[string]any{"role_id": roleID})
	return nil
}

// RemoveMember removes a member from the mess. The admin cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, messID, userID int64) error {
	membership, err := s.repo.GetMembership(ctx, messID, userID)
	if err != nil {
		return err
	}
	if membership.Admin {
		return ErrAdminImmutable
	}
	return s.repo.RemoveMembership(ctx, messID, userID)
}

func (s *Service) recordAudit(ctx context.Context, messID, actorID int64, action string, subjectID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		MessID:   messID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "membership",
		EntityID: strconv.FormatInt(subjectID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Error("tenant: audit record", slog.Any("error", err))
	}
}
