package meals

import (
	"errors"
	"time"
)

// MealType distinguishes the three daily meals.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// Valid reports whether t is a known meal type.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

// MealLog is one member's meal entry for a day. Count supports guest meals,
// so a member may log more than one unit per type.
type MealLog struct {
	ID        int64
	MessID    int64
	UserID    int64
	Date      time.Time
	Type      MealType
	Count     int
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attribute exposes fields by name for ownership and tenancy predicates.
func (m MealLog) Attribute(name string) (any, bool) {
	switch name {
	case "id":
		return m.ID, true
	case "mess_id":
		return m.MessID, true
	case "user_id":
		return m.UserID, true
	case "type":
		return string(m.Type), true
	case "count":
		return m.Count, true
	}
	return nil, false
}

// TenantID returns the mess the entry belongs to.
func (m MealLog) TenantID() int64 { return m.MessID }

// Summary aggregates a member's meal units within a period.
type Summary struct {
	UserID int64 `json:"user_id"`
	Total  int   `json:"total"`
}

var (
	// ErrInvalidMeal indicates a malformed meal entry.
	ErrInvalidMeal = errors.New("meals: invalid meal entry")
	// ErrOutsidePeriod indicates a date outside the current billing period.
	ErrOutsidePeriod = errors.New("meals: date outside current period")
)
