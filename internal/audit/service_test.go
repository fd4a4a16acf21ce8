package audit

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTimelineRepo struct {
	entries map[int64][]Entry
}

func (r *memoryTimelineRepo) matches(e Entry, f TimelineFilters) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Entity != "" && e.Entity != f.Entity {
		return false
	}
	if !f.From.IsZero() && e.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.At.Before(f.To) {
		return false
	}
	return true
}

func (r *memoryTimelineRepo) filtered(messID int64, f TimelineFilters) []Entry {
	var out []Entry
	for _, e := range r.entries[messID] {
		if r.matches(e, f) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}

func (r *memoryTimelineRepo) TimelineWindow(ctx context.Context, messID int64, f TimelineFilters, limit, offset int) ([]Entry, error) {
	out := r.filtered(messID, f)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryTimelineRepo) CountTimeline(ctx context.Context, messID int64, f TimelineFilters) (int, error) {
	return len(r.filtered(messID, f)), nil
}

func seededRepo(count int) *memoryTimelineRepo {
	repo := &memoryTimelineRepo{entries: make(map[int64][]Entry)}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		action := "subscription.plan_changed"
		if i%2 == 0 {
			action = "authz.role_changed"
		}
		repo.entries[1] = append(repo.entries[1], Entry{
			At:       base.Add(time.Duration(i) * time.Hour),
			ActorID:  42,
			Action:   action,
			Entity:   "role",
			EntityID: "7",
		})
	}
	return repo
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(seededRepo(45))

	first, err := svc.Timeline(context.Background(), 1, TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, first.Rows, 20)
	assert.Equal(t, 45, first.Paging.Total)
	assert.Equal(t, 3, first.Paging.TotalPages)
	assert.True(t, first.Rows[0].At.After(first.Rows[1].At), "newest first")

	last, err := svc.Timeline(context.Background(), 1, TimelineFilters{Page: 3})
	require.NoError(t, err)
	assert.Len(t, last.Rows, 5)
}

func TestTimelinePageSizeClamped(t *testing.T) {
	svc := NewService(seededRepo(80))

	result, err := svc.Timeline(context.Background(), 1, TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, result.Rows, maxPageSize)
}

func TestTimelineActionFilter(t *testing.T) {
	svc := NewService(seededRepo(10))

	result, err := svc.Timeline(context.Background(), 1, TimelineFilters{Action: "authz.role_changed"})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Paging.Total)
	for _, row := range result.Rows {
		assert.Equal(t, "authz.role_changed", row.Action)
	}
}

func TestTimelineScopedToMess(t *testing.T) {
	svc := NewService(seededRepo(10))

	result, err := svc.Timeline(context.Background(), 2, TimelineFilters{})
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 0, result.Paging.Total)
}

func TestExportCSV(t *testing.T) {
	svc := NewService(seededRepo(3))

	rows, err := svc.Export(context.Background(), 1, TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	doc, err := WriteCSV(rows)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(doc)), "\n")
	require.Len(t, lines, 4, "header plus one line per entry")
	assert.Equal(t, "at,actor_id,action,entity,entity_id,meta", lines[0])
	assert.Contains(t, lines[1], "authz.role_changed")
	assert.Contains(t, lines[2], "subscription.plan_changed")
}
