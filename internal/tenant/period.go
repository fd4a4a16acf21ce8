package tenant

import (
	"fmt"
	"time"
)

// Period is a mess billing window. Messes pick an anchor day (1..28) so the
// cycle need not align with the calendar month. Code identifies the window
// and keys feature usage counters.
type Period struct {
	Code  string
	Start time.Time
	End   time.Time // exclusive
}

// DefaultAnchorDay starts billing cycles on the first of the month.
const DefaultAnchorDay = 1

// PeriodFor computes the billing window containing t for the given anchor
// day. Anchor days outside 1..28 fall back to DefaultAnchorDay so short
// months cannot skip a cycle.
func PeriodFor(t time.Time, anchorDay int) Period {
	if anchorDay < 1 || anchorDay > 28 {
		anchorDay = DefaultAnchorDay
	}
	year, month, _ := t.Date()
	start := time.Date(year, month, anchorDay, 0, 0, 0, 0, t.Location())
	if t.Before(start) {
		start = start.AddDate(0, -1, 0)
	}
	end := start.AddDate(0, 1, 0)
	return Period{
		Code:  fmt.Sprintf("%04d-%02d", start.Year(), int(start.Month())),
		Start: start,
		End:   end,
	}
}

// Contains reports whether t falls inside the period window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Next returns the following billing window.
func (p Period) Next() Period {
	start := p.End
	return Period{
		Code:  fmt.Sprintf("%04d-%02d", start.Year(), int(start.Month())),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}
