package entitlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateScopeKey struct{}

type countingGates struct {
	mu       sync.Mutex
	denied   map[string]int
	consumed map[string]int
}

func newCountingGates() *countingGates {
	return &countingGates{denied: make(map[string]int), consumed: make(map[string]int)}
}

func (c *countingGates) FeatureDenied(feature, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denied[feature+"/"+reason]++
}

func (c *countingGates) QuotaConsumed(feature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed[feature]++
}

func gateMiddleware(repo *memoryEntitlementRepo, counter GateCounter) Middleware {
	engine := NewEngine(repo, nil, WithClock(fixedClock()))
	return Middleware{
		Engine: engine,
		Scope: func(ctx context.Context) Scope {
			if s, ok := ctx.Value(gateScopeKey{}).(Scope); ok {
				return s
			}
			return nil
		},
		Counter: counter,
	}
}

func doGateRequest(t *testing.T, handler http.Handler, scope Scope) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if scope != nil {
		req = req.WithContext(context.WithValue(req.Context(), gateScopeKey{}, scope))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateNoSubscriptionIs402(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	mw := gateMiddleware(repo, nil)

	rec := doGateRequest(t, mw.Gate(FeatureMealEntry)(okHandler()), engineScope{messID: 1, period: "2026-03"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestGateFeatureNotInPlanIs402(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	mw := gateMiddleware(repo, nil)

	rec := doGateRequest(t, mw.Gate(FeatureReportGenerate)(okHandler()), engineScope{messID: 1, period: "2026-03"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestGateQuotaExceededIs429(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	repo.usage[repo.usageKey(1, "2026-03", FeatureMemberLimit)] = 10
	counter := newCountingGates()
	mw := gateMiddleware(repo, counter)

	rec := doGateRequest(t, mw.Gate(FeatureMemberLimit)(okHandler()), engineScope{messID: 1, period: "2026-03"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, counter.denied["member_limit/quota_exceeded"])
}

func TestGateDoesNotConsumeQuota(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	mw := gateMiddleware(repo, nil)
	gate := mw.Gate(FeatureMealEntry)(okHandler())
	scope := engineScope{messID: 1, period: "2026-03"}

	for i := 0; i < 3; i++ {
		rec := doGateRequest(t, gate, scope)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	used, _ := repo.FeatureUsed(context.Background(), 1, "2026-03", FeatureMealEntry)
	assert.Equal(t, 0, used)
}

func TestMeterConsumesQuota(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanBasic)
	counter := newCountingGates()
	mw := gateMiddleware(repo, counter)
	meter := mw.Meter(FeatureMealEntry)(okHandler())
	scope := engineScope{messID: 1, period: "2026-03"}

	for i := 0; i < 3; i++ {
		rec := doGateRequest(t, meter, scope)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	used, _ := repo.FeatureUsed(context.Background(), 1, "2026-03", FeatureMealEntry)
	assert.Equal(t, 3, used)
	assert.Equal(t, 3, counter.consumed["meal_entry"])
}

func TestGateMissingScopeIs500(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	mw := gateMiddleware(repo, nil)

	rec := doGateRequest(t, mw.Gate(FeatureMealEntry)(okHandler()), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGateTableCoversCatalogue(t *testing.T) {
	repo := newMemoryEntitlementRepo()
	repo.sub = activeSub(PlanEnterprise)
	table := NewGateTable(gateMiddleware(repo, nil))

	require.Len(t, table, len(Features()))
	for _, f := range Features() {
		gate, ok := table[f]
		require.True(t, ok, "missing gate for %s", f)
		rec := doGateRequest(t, gate(okHandler()), engineScope{messID: 1, period: "2026-03"})
		assert.Equal(t, http.StatusOK, rec.Code, "enterprise plan should pass %s", f)
	}
}
