package tenant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodForDefaultAnchor(t *testing.T) {
	p := PeriodFor(date(2026, 3, 15), 1)
	assert.Equal(t, "2026-03", p.Code)
	assert.Equal(t, date(2026, 3, 1), p.Start)
	assert.Equal(t, date(2026, 4, 1), p.End)
}

func TestPeriodForBeforeAnchorFallsBack(t *testing.T) {
	// On the 3rd with a 10th anchor, the running window started last month.
	p := PeriodFor(date(2026, 3, 3), 10)
	assert.Equal(t, "2026-02", p.Code)
	assert.Equal(t, date(2026, 2, 10), p.Start)
	assert.Equal(t, date(2026, 3, 10), p.End)
}

func TestPeriodForOnAnchorDay(t *testing.T) {
	p := PeriodFor(date(2026, 3, 10), 10)
	assert.Equal(t, date(2026, 3, 10), p.Start)
	assert.Equal(t, date(2026, 4, 10), p.End)
}

func TestPeriodForYearBoundary(t *testing.T) {
	p := PeriodFor(date(2026, 1, 2), 15)
	assert.Equal(t, "2025-12", p.Code)
	assert.Equal(t, date(2025, 12, 15), p.Start)
	assert.Equal(t, date(2026, 1, 15), p.End)
}

func TestPeriodForInvalidAnchorFallsBackToDefault(t *testing.T) {
	for _, anchor := range []int{0, -3, 29, 31} {
		p := PeriodFor(date(2026, 3, 15), anchor)
		assert.Equal(t, date(2026, 3, 1), p.Start, "anchor %d", anchor)
	}
}

func TestPeriodContains(t *testing.T) {
	p := PeriodFor(date(2026, 3, 15), 1)
	assert.True(t, p.Contains(date(2026, 3, 1)), "start is inclusive")
	assert.True(t, p.Contains(date(2026, 3, 31)))
	assert.False(t, p.Contains(date(2026, 4, 1)), "end is exclusive")
	assert.False(t, p.Contains(date(2026, 2, 28)))
}

func TestPeriodNext(t *testing.T) {
	p := PeriodFor(date(2026, 3, 15), 10)
	next := p.Next()
	assert.Equal(t, p.End, next.Start)
	assert.Equal(t, "2026-04", next.Code)
	assert.Equal(t, date(2026, 5, 10), next.End)
}

func TestPeriodCodesDifferAcrossMonths(t *testing.T) {
	a := PeriodFor(date(2026, 3, 15), 1)
	b := PeriodFor(date(2026, 4, 15), 1)
	assert.NotEqual(t, a.Code, b.Code, "rollover must produce a fresh counter key")
}
