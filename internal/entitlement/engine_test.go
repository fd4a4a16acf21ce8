package entitlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryEntitlementRepo struct {
	mu    sync.Mutex
	sub   *Subscription
	usage map[string]int
}

func newMemoryEntitlementRepo() *memoryEntitlementRepo {
	return &memoryEntitlementRepo{usage: make(map[string]int)}
}

func (r *memoryEntitlementRepo) usageKey(messID int64, period string, f Feature) string {
	return fmt.Sprintf("%d:%s:%s", messID, period, f)
}

func (r *memoryEntitlementRepo) ActiveSubscription(ctx context.Context, messID int64, now time.Time) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil || r.sub.MessID != messID || !r.sub.Active ||
		now.Before(r.sub.StartsAt) || !now.Before(r.sub.ExpiresAt) {
		return Subscription{}, ErrNoSubscription
	}
	return *r.sub, nil
}

func (r *memoryEntitlementRepo) FeatureUsed(ctx context.Context, messID int64, period string, f Feature) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage[r.usageKey(messID, period, f)], nil
}

func (r *memoryEntitlementRepo) AllUsage(ctx context.Context, messID int64, period string) (map[Feature]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Feature]int)
	for _, f := range Features() {
		if used, ok := r.usage[r.usageKey(messID, period, f)]; ok {
			out[f] = used
		}
	}
	return out, nil
}

// IncrementUsage mirrors the conditional upsert: check and write hold the
// same lock, so concurrent increments cannot pass the limit.
func (r *memoryEntitlementRepo) IncrementUsage(ctx context.Context, messID int64, period string, f Feature, usageLimit *int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.usageKey(messID, period, f)
	current := r.usage[key]
	if usageLimit != nil && current >= *usageLimit {
		return 0, false, nil
	}
	r.usage[key] = current + 1
	return current + 1, true, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Feature
}

func (n *recordingNotifier) QuotaExhausted(ctx context.Context, messID int64, f Feature, used int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, f)
}

type engineScope struct {
	messID int64
	period string
}

func (s engineScope) MessID() int64      { return s.messID }
func (s engineScope) PeriodCode() string { return s.period }

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func activeSub(plan Plan) *Subscription {
	return &Subscription{
		ID:        1,
		MessID:    1,
		Plan:      plan,
		Package:   string(plan) + "-monthly",
		Active:    true,
		StartsAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCanUseFeatureNoSubscription(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	decision, err := engine.CanUseFeature(context.Background(), scope, FeatureMealEntry)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonNoSubscription, decision.Reason)
}

func TestCanUseFeatureNotInPlan(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	decision, err := engine.CanUseFeature(context.Background(), scope, FeatureReportGenerate)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonFeatureNotInPlan, decision.Reason)
}

func TestCanUseFeatureQuota(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}
	ctx := context.Background()

	// Basic allows 10 members; 9 used leaves exactly one.
	repo.usage[repo.usageKey(1, "2026-03", FeatureMemberLimit)] = 9
	decision, err := engine.CanUseFeature(ctx, scope, FeatureMemberLimit)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	require.NotNil(t, decision.Remaining())
	assert.Equal(t, 1, *decision.Remaining())

	repo.usage[repo.usageKey(1, "2026-03", FeatureMemberLimit)] = 10
	decision, err = engine.CanUseFeature(ctx, scope, FeatureMemberLimit)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, decision.Reason)
}

func TestCanUseFeatureUnlimited(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanPremium)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	// Premium has unlimited meal entries; a huge counter changes nothing.
	repo.usage[repo.usageKey(1, "2026-03", FeatureMealEntry)] = 100000
	decision, err := engine.CanUseFeature(context.Background(), scope, FeatureMealEntry)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Limit)
	assert.Nil(t, decision.Remaining())
}

func TestCanUseFeatureIsPureRead(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := engine.CanUseFeature(ctx, scope, FeatureMealEntry)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 0, decision.Used)
	}
	used, err := repo.FeatureUsed(ctx, 1, "2026-03", FeatureMealEntry)
	require.NoError(t, err)
	assert.Equal(t, 0, used, "checks must not consume quota")
}

func TestExpiredSubscriptionDenied(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	sub := activeSub(PlanBasic)
	sub.ExpiresAt = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) // before the clock
	repo.sub = sub
	engine := NewEngine(repo, nil, WithClock(fixedClock()))

	decision, err := engine.CanUseFeature(context.Background(), engineScope{messID: 1, period: "2026-03"}, FeatureMealEntry)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoSubscription, decision.Reason)
}

func TestIncrementFeatureUsage(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		decision, err := engine.IncrementFeatureUsage(ctx, scope, FeatureMemberLimit)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "increment %d", i)
		assert.Equal(t, i, decision.Used)
	}

	decision, err := engine.IncrementFeatureUsage(ctx, scope, FeatureMemberLimit)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, decision.Reason)
}

// racingRepo exhausts the counter right before the conditional write, like a
// competing request consuming the final unit between check and increment.
type racingRepo struct {
	*memoryEntitlementRepo
	limit int
}

func (r *racingRepo) IncrementUsage(ctx context.Context, messID int64, period string, f Feature, usageLimit *int) (int, bool, error) {
	r.mu.Lock()
	r.usage[r.usageKey(messID, period, f)] = r.limit
	r.mu.Unlock()
	return r.memoryEntitlementRepo.IncrementUsage(ctx, messID, period, f, usageLimit)
}

func TestIncrementLostRaceReportsActualUsage(t *testing.T) {
	inner := newMemoryEntitlementRepo()
	inner.sub = activeSub(PlanBasic)
	inner.usage[inner.usageKey(1, "2026-03", FeatureMemberLimit)] = 9
	repo := &racingRepo{memoryEntitlementRepo: inner, limit: 10}
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	decision, err := engine.IncrementFeatureUsage(context.Background(), scope, FeatureMemberLimit)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, decision.Reason)
	assert.Equal(t, 10, decision.Used, "denial must carry the counter's value at denial time, not the pre-race read")
}

func TestIncrementNonCountablePassesThrough(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanPremium)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	decision, err := engine.IncrementFeatureUsage(context.Background(), scope, FeatureNoticeBoard)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	used, _ := repo.FeatureUsed(context.Background(), 1, "2026-03", FeatureNoticeBoard)
	assert.Equal(t, 0, used)
}

func TestIncrementConcurrencyNeverOvershoots(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	const workers = 50 // Basic member limit is 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := engine.IncrementFeatureUsage(context.Background(), scope, FeatureMemberLimit)
			if err == nil && decision.Allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	used, _ := repo.FeatureUsed(context.Background(), 1, "2026-03", FeatureMemberLimit)
	assert.Equal(t, 10, used)
}

func TestPeriodRolloverResetsCounter(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	ctx := context.Background()

	march := engineScope{messID: 1, period: "2026-03"}
	repo.usage[repo.usageKey(1, "2026-03", FeatureMemberLimit)] = 10
	decision, err := engine.CanUseFeature(ctx, march, FeatureMemberLimit)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Same mess, next period: a fresh counter.
	april := engineScope{messID: 1, period: "2026-04"}
	decision, err = engine.CanUseFeature(ctx, april, FeatureMemberLimit)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Used)
}

func TestNotifierFiresOnExhaustion(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	notifier := &recordingNotifier{}
	engine := NewEngine(repo, nil, WithClock(fixedClock()), WithNotifier(notifier))
	scope := engineScope{messID: 1, period: "2026-03"}
	ctx := context.Background()

	repo.usage[repo.usageKey(1, "2026-03", FeatureMemberLimit)] = 9
	decision, err := engine.IncrementFeatureUsage(ctx, scope, FeatureMemberLimit)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, []Feature{FeatureMemberLimit}, notifier.events)
}

func TestAvailableFeaturesSnapshot(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	scope := engineScope{messID: 1, period: "2026-03"}

	repo.usage[repo.usageKey(1, "2026-03", FeatureMealEntry)] = 42
	snapshot, err := engine.AvailableFeatures(context.Background(), scope)
	require.NoError(t, err)

	meal, ok := snapshot[FeatureMealEntry]
	require.True(t, ok)
	assert.True(t, meal.Countable)
	require.NotNil(t, meal.Limit)
	assert.Equal(t, 150, *meal.Limit)
	assert.Equal(t, 42, meal.Used)
	require.NotNil(t, meal.Remaining)
	assert.Equal(t, 108, *meal.Remaining)

	_, ok = snapshot[FeatureReportGenerate]
	assert.False(t, ok, "features outside the plan stay out of the snapshot")
}
