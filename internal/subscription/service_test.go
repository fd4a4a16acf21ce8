package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messdesk/messdesk/internal/entitlement"
	"github.com/messdesk/messdesk/internal/platform/db"
)

type memorySubRepo struct {
	subs   []entitlement.Subscription
	nextID int64
}

func (r *memorySubRepo) Current(ctx context.Context, messID int64, now time.Time) (entitlement.Subscription, error) {
	for _, s := range r.subs {
		if s.MessID == messID && s.Active && !s.StartsAt.After(now) && now.Before(s.ExpiresAt) {
			return s, nil
		}
	}
	return entitlement.Subscription{}, entitlement.ErrNoSubscription
}

func (r *memorySubRepo) Replace(ctx context.Context, sub entitlement.Subscription) (entitlement.Subscription, error) {
	for i := range r.subs {
		if r.subs[i].MessID == sub.MessID {
			r.subs[i].Active = false
		}
	}
	r.nextID++
	sub.ID = r.nextID
	sub.CreatedAt = time.Now()
	r.subs = append(r.subs, sub)
	return sub, nil
}

func (r *memorySubRepo) InsertWith(ctx context.Context, q db.Querier, sub entitlement.Subscription) error {
	r.nextID++
	sub.ID = r.nextID
	r.subs = append(r.subs, sub)
	return nil
}

func (r *memorySubRepo) Extend(ctx context.Context, subscriptionID int64, expiresAt time.Time) (entitlement.Subscription, error) {
	for i := range r.subs {
		if r.subs[i].ID == subscriptionID && r.subs[i].Active {
			r.subs[i].ExpiresAt = expiresAt
			return r.subs[i], nil
		}
	}
	return entitlement.Subscription{}, ErrConcurrentChange
}

func (r *memorySubRepo) History(ctx context.Context, messID int64) ([]entitlement.Subscription, error) {
	var out []entitlement.Subscription
	for i := len(r.subs) - 1; i >= 0; i-- {
		if r.subs[i].MessID == messID {
			out = append(out, r.subs[i])
		}
	}
	return out, nil
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Invalidate(ctx context.Context, messID int64, period string) {
	c.invalidated = append(c.invalidated, period)
}

func newSubService(repo *memorySubRepo, cache Cache) *Service {
	svc := NewService(repo, cache, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestStartFreeUsesBasicPackage(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newSubService(repo, nil)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.StartFree(context.Background(), nil, 7, now))
	require.Len(t, repo.subs, 1)
	sub := repo.subs[0]
	assert.Equal(t, entitlement.PlanBasic, sub.Plan)
	assert.Equal(t, "basic-free", sub.Package)
	assert.True(t, sub.Active)
	assert.False(t, sub.Trial)
	assert.Equal(t, now.AddDate(0, 0, 365), sub.ExpiresAt)
}

func TestSubscribeSupersedesCurrent(t *testing.T) {
	repo := &memorySubRepo{}
	cache := &recordingCache{}
	svc := newSubService(repo, cache)
	ctx := context.Background()
	require.NoError(t, svc.StartFree(ctx, nil, 7, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	sub, err := svc.Subscribe(ctx, 42, 7, "premium-monthly", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, entitlement.PlanPremium, sub.Plan)
	assert.Equal(t, []string{"2026-03"}, cache.invalidated)

	current, err := svc.Current(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, entitlement.PlanPremium, current.Plan)

	history, err := svc.History(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, history, 2, "the superseded row is kept")
}

func TestSubscribeUnknownPackage(t *testing.T) {
	svc := newSubService(&memorySubRepo{}, nil)
	_, err := svc.Subscribe(context.Background(), 42, 7, "gold-plated", "2026-03")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestTrialOnlyOnce(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newSubService(repo, nil)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, 42, 7, "premium-trial", "2026-03")
	require.NoError(t, err)

	_, err = svc.Subscribe(ctx, 42, 7, "premium-trial", "2026-03")
	assert.ErrorIs(t, err, ErrTrialConsumed)
}

func TestRenewExtendsFromExpiry(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newSubService(repo, nil)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, 42, 7, "premium-monthly", "2026-03")
	require.NoError(t, err)

	renewed, err := svc.Renew(ctx, 42, 7, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, first.StartsAt, renewed.StartsAt, "renewal keeps the running window's start")
	assert.Equal(t, first.ExpiresAt.AddDate(0, 0, 30), renewed.ExpiresAt)
}

func TestRenewKeepsSubscriptionInEffect(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newSubService(repo, nil)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, 42, 7, "premium-monthly", "2026-03")
	require.NoError(t, err)

	_, err = svc.Renew(ctx, 42, 7, "2026-03")
	require.NoError(t, err)

	// The already-paid window must stay covered: an early renewal never
	// leaves the mess without an active subscription.
	current, err := svc.Current(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, entitlement.PlanPremium, current.Plan)
	assert.Equal(t, first.ExpiresAt.AddDate(0, 0, 30), current.ExpiresAt)
}

func TestRenewWithoutSubscription(t *testing.T) {
	svc := newSubService(&memorySubRepo{}, nil)
	_, err := svc.Renew(context.Background(), 42, 7, "2026-03")
	assert.ErrorIs(t, err, entitlement.ErrNoSubscription)
}

func TestRenewTrialRejected(t *testing.T) {
	repo := &memorySubRepo{}
	svc := newSubService(repo, nil)
	ctx := context.Background()
	_, err := svc.Subscribe(ctx, 42, 7, "premium-trial", "2026-03")
	require.NoError(t, err)

	_, err = svc.Renew(ctx, 42, 7, "2026-03")
	assert.ErrorIs(t, err, ErrTrialConsumed)
}
