package friction

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Today returns the local calendar date of t as YYYY-MM-DD.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}

// Category groups friction items by area of life.
type Category string

const (
	CategoryHome    Category = "home"
	CategoryWork    Category = "work"
	CategoryDigital Category = "digital"
	CategoryHealth  Category = "health"
	CategoryOther   Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryHome, CategoryWork, CategoryDigital, CategoryHealth, CategoryOther}

// DisplayName returns the human-readable category name.
func (c Category) DisplayName() string {
	switch c {
	case CategoryHome:
		return "Home"
	case CategoryWork:
		return "Work"
	case CategoryDigital:
		return "Digital"
	case CategoryHealth:
		return "Health"
	case CategoryOther:
		return "Other"
	}
	return string(c)
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (want one of home, work, digital, health, other)", s)
}

// Status is the fix progress of a friction item.
type Status string

const (
	StatusNotFixed   Status = "not_fixed"
	StatusInProgress Status = "in_progress"
	StatusFixed      Status = "fixed"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusNotFixed, StatusInProgress, StatusFixed}

// IsActive reports whether items in this status still accrue encounters.
func (s Status) IsActive() bool {
	return s == StatusNotFixed || s == StatusInProgress
}

// DisplayName returns the human-readable status name.
func (s Status) DisplayName() string {
	switch s {
	case StatusNotFixed:
		return "Not Fixed"
	case StatusInProgress:
		return "In Progress"
	case StatusFixed:
		return "Fixed"
	}
	return string(s)
}

// ParseStatus accepts wire names and the dashed CLI spelling ("in-progress").
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q (want one of not_fixed, in_progress, fixed)", s)
}

// Item is a tracked annoyance as reported by the backend.
// EncounterCount and IsLimitExceeded are owned by the backend; the client only reads them.
type Item struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       *string    `json:"description"`
	AnnoyanceLevel    int        `json:"annoyance_level"`
	Category          Category   `json:"category"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FixedAt           *time.Time `json:"fixed_at"`
	EncounterCount    int        `json:"encounter_count"`
	EncounterLimit    *int       `json:"encounter_limit"`
	LastEncounterDate *string    `json:"last_encounter_date"`
	IsLimitExceeded   bool       `json:"is_limit_exceeded"`
}

// Impact is annoyance level times today's encounter count.
func (it Item) Impact() int {
	return it.AnnoyanceLevel * it.EncounterCount
}

// ItemCreate is the body of a create request.
type ItemCreate struct {
	Title          string   `json:"title" validate:"required,notblank"`
	Description    *string  `json:"description,omitempty"`
	AnnoyanceLevel int      `json:"annoyance_level" validate:"min=1,max=5"`
	Category       Category `json:"category" validate:"oneof=home work digital health other"`
	EncounterLimit *int     `json:"encounter_limit,omitempty" validate:"omitnil,min=1"`
}

// Score is the day's aggregate standing. It is replaced wholesale on every fetch.
type Score struct {
	CurrentScore            int  `json:"current_score"`
	ActiveCount             int  `json:"active_count"`
	ItemsOverLimit          int  `json:"items_over_limit"`
	TotalEncountersToday    int  `json:"total_encounters_today"`
	WeightedEncountersToday int  `json:"weighted_encounters_today"`
	GlobalDailyLimit        *int `json:"global_daily_limit"`
	LimitPercentage         *int `json:"limit_percentage"`
}

// HasLimit reports whether a global limit and its percentage are both present.
func (s Score) HasLimit() bool {
	return s.GlobalDailyLimit != nil && s.LimitPercentage != nil && *s.GlobalDailyLimit > 0
}

// TrendPoint is one day of the score history.
type TrendPoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// CategoryBreakdown holds per-category score totals.
type CategoryBreakdown struct {
	Home    int `json:"home"`
	Work    int `json:"work"`
	Digital int `json:"digital"`
	Health  int `json:"health"`
	Other   int `json:"other"`
}

// Total sums all categories.
func (b CategoryBreakdown) Total() int {
	return b.Home + b.Work + b.Digital + b.Health + b.Other
}

// ScoreFor returns the total for one category.
func (b CategoryBreakdown) ScoreFor(c Category) int {
	switch c {
	case CategoryHome:
		return b.Home
	case CategoryWork:
		return b.Work
	case CategoryDigital:
		return b.Digital
	case CategoryHealth:
		return b.Health
	case CategoryOther:
		return b.Other
	}
	return 0
}

// Add accumulates score into the bucket for c.
func (b *CategoryBreakdown) Add(c Category, score int) {
	switch c {
	case CategoryHome:
		b.Home += score
	case CategoryWork:
		b.Work += score
	case CategoryDigital:
		b.Digital += score
	case CategoryHealth:
		b.Health += score
	case CategoryOther:
		b.Other += score
	}
}

// RankedItem is one row of the most-annoying list.
type RankedItem struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	AnnoyanceLevel int      `json:"annoyance_level"`
	EncounterCount int      `json:"encounter_count"`
	Impact         int      `json:"impact"`
	Category       Category `json:"category"`
}

// GlobalLimit is the body of the global-limit endpoint. A nil Limit means unlimited.
type GlobalLimit struct {
	Limit *int `json:"limit" validate:"omitnil,min=1"`
}

// Filter scopes an item list. Zero fields mean "any".
type Filter struct {
	Status   Status
	Category Category
}
