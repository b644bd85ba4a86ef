// Package notify decides when friction alerts fire.
//
// The global thresholds (75%, 90%, 100% of the daily limit) each fire at most
// once per calendar day. An item that reaches its own encounter limit fires
// once until it drops back under the limit or the day changes.
package notify

import (
	"fmt"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

// Kind identifies what an alert is about.
type Kind string

const (
	KindItemLimitExceeded Kind = "item_limit_exceeded"
	KindApproachingLimit  Kind = "approaching_limit"
	KindAlmostAtLimit     Kind = "almost_at_limit"
	KindLimitExceeded     Kind = "limit_exceeded"
)

// State is the day-scoped record of what has already been announced.
type State struct {
	Date       string
	Crossed75  bool
	Crossed90  bool
	Crossed100 bool
	// ItemAlerted holds ids that already produced an item alert on Date.
	ItemAlerted map[int64]bool
}

// forDay returns s, or a cleared state if s belongs to another day.
func (s State) forDay(today string) State {
	if s.Date == today {
		return s
	}
	return State{Date: today}
}

func (s State) withItem(id int64, alerted bool) State {
	if s.ItemAlerted[id] == alerted {
		return s
	}
	m := make(map[int64]bool, len(s.ItemAlerted)+1)
	for k, v := range s.ItemAlerted {
		if v {
			m[k] = v
		}
	}
	if alerted {
		m[id] = true
	} else {
		delete(m, id)
	}
	s.ItemAlerted = m
	return s
}

// Evaluate applies one aggregate score to s. It emits at most one alert,
// checking 100%, then 90%, then 75%. A score without a configured limit
// produces no alert and leaves the flags alone apart from the day rollover.
func Evaluate(s State, today string, score friction.Score) (State, []Alert) {
	s = s.forDay(today)
	if !score.HasLimit() {
		return s, nil
	}

	pct := *score.LimitPercentage
	var kind Kind
	switch {
	case pct >= 100 && !s.Crossed100:
		s.Crossed100 = true
		kind = KindLimitExceeded
	case pct >= 90 && !s.Crossed90:
		s.Crossed90 = true
		kind = KindAlmostAtLimit
	case pct >= 75 && !s.Crossed75:
		s.Crossed75 = true
		kind = KindApproachingLimit
	default:
		return s, nil
	}

	return s, []Alert{{
		Kind:       kind,
		Subject:    fmt.Sprintf("global-limit-%d", threshold(kind)),
		Score:      score.WeightedEncountersToday,
		Limit:      *score.GlobalDailyLimit,
		Percentage: pct,
	}}
}

// EvaluateItem applies one freshly returned item to s. An exceeded item
// alerts once; an item seen under its limit again is re-armed.
func EvaluateItem(s State, today string, item friction.Item) (State, []Alert) {
	s = s.forDay(today)
	if !item.IsLimitExceeded {
		return s.withItem(item.ID, false), nil
	}
	if s.ItemAlerted[item.ID] {
		return s, nil
	}

	a := Alert{
		Kind:           KindItemLimitExceeded,
		Subject:        fmt.Sprintf("item-%d", item.ID),
		ItemID:         item.ID,
		ItemTitle:      item.Title,
		EncounterCount: item.EncounterCount,
	}
	if item.EncounterLimit != nil {
		a.EncounterLimit = *item.EncounterLimit
	}
	return s.withItem(item.ID, true), []Alert{a}
}

func threshold(k Kind) int {
	switch k {
	case KindApproachingLimit:
		return 75
	case KindAlmostAtLimit:
		return 90
	case KindLimitExceeded:
		return 100
	}
	return 0
}
