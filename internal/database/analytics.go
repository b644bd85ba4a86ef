package database

import (
	"math"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

const dateLayout = friction.DateLayout

// maxTrendDays bounds the trend window.
const maxTrendDays = 365

// Score computes today's aggregate standing over active items.
func (db *DB) Score() (*friction.Score, error) {
	if err := db.resetStaleCounts(); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		"SELECT annoyance_level, encounter_count, encounter_limit FROM friction_items WHERE status != 'fixed'",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var s friction.Score
	for rows.Next() {
		var level, count int
		var limit *int
		if err := rows.Scan(&level, &count, &limit); err != nil {
			return nil, err
		}
		s.ActiveCount++
		s.TotalEncountersToday += count
		s.WeightedEncountersToday += level * count
		if limit != nil && count >= *limit {
			s.ItemsOverLimit++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.CurrentScore = s.WeightedEncountersToday

	limit, err := db.GlobalLimit()
	if err != nil {
		return nil, err
	}
	if limit != nil && *limit > 0 {
		pct := int(math.Round(float64(s.WeightedEncountersToday) * 100 / float64(*limit)))
		s.GlobalDailyLimit = limit
		s.LimitPercentage = &pct
	}
	return &s, nil
}

// Trend returns one point per day for the last days days, oldest first.
// Days without encounters score zero.
func (db *DB) Trend(days int) ([]friction.TrendPoint, error) {
	if days < 1 {
		days = 1
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	now := db.now()
	start := now.AddDate(0, 0, -(days - 1)).Format(dateLayout)

	rows, err := db.conn.Query(
		`SELECT encounter_date, SUM(annoyance_level) FROM encounters
		 WHERE encounter_date >= ? GROUP BY encounter_date`,
		start,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDate := make(map[string]int)
	for rows.Next() {
		var date string
		var score int
		if err := rows.Scan(&date, &score); err != nil {
			return nil, err
		}
		byDate[date] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points := make([]friction.TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		points = append(points, friction.TrendPoint{Date: date, Score: byDate[date]})
	}
	return points, nil
}

// CategoryBreakdown sums today's impact per category over active items.
func (db *DB) CategoryBreakdown() (*friction.CategoryBreakdown, error) {
	if err := db.resetStaleCounts(); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		`SELECT category, SUM(annoyance_level * encounter_count) FROM friction_items
		 WHERE status != 'fixed' GROUP BY category`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var b friction.CategoryBreakdown
	for rows.Next() {
		var category string
		var score int
		if err := rows.Scan(&category, &score); err != nil {
			return nil, err
		}
		b.Add(friction.Category(category), score)
	}
	return &b, rows.Err()
}

// MostAnnoying ranks active items by today's impact.
func (db *DB) MostAnnoying(limit int) ([]friction.RankedItem, error) {
	if limit < 1 {
		limit = 1
	}
	if err := db.resetStaleCounts(); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		`SELECT id, title, annoyance_level, encounter_count, annoyance_level * encounter_count AS impact, category
		 FROM friction_items WHERE status != 'fixed'
		 ORDER BY impact DESC, annoyance_level DESC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := []friction.RankedItem{}
	for rows.Next() {
		var r friction.RankedItem
		var category string
		if err := rows.Scan(&r.ID, &r.Title, &r.AnnoyanceLevel, &r.EncounterCount, &r.Impact, &category); err != nil {
			return nil, err
		}
		r.Category = friction.Category(category)
		ranked = append(ranked, r)
	}
	return ranked, rows.Err()
}
