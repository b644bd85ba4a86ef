package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

const itemColumns = `id, title, description, annoyance_level, category, status,
	created_at, updated_at, fixed_at, encounter_count, encounter_limit, last_encounter_date`

type scanner interface {
	Scan(dest ...any) error
}

// InsertItem creates a friction item and returns the stored row.
func (db *DB) InsertItem(req friction.ItemCreate) (*friction.Item, error) {
	now := db.timestamp()
	result, err := db.conn.Exec(
		`INSERT INTO friction_items (title, description, annoyance_level, category, status, created_at, updated_at, encounter_limit)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Title, req.Description, req.AnnoyanceLevel, string(req.Category), string(friction.StatusNotFixed), now, now, req.EncounterLimit,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetItem(id)
}

// GetItem returns a single item by ID, or ErrNotFound.
func (db *DB) GetItem(id int64) (*friction.Item, error) {
	if err := db.resetStaleCounts(); err != nil {
		return nil, err
	}
	row := db.conn.QueryRow("SELECT "+itemColumns+" FROM friction_items WHERE id = ?", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// ListItems returns items matching filter, newest first.
func (db *DB) ListItems(filter friction.Filter) ([]friction.Item, error) {
	if err := db.resetStaleCounts(); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}

	query := "SELECT " + itemColumns + " FROM friction_items"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []friction.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// UpdateItem applies the fields set on u. Moving to fixed stamps fixed_at;
// moving away from fixed clears it.
func (db *DB) UpdateItem(id int64, u friction.ItemUpdate) (*friction.Item, error) {
	var updates []string
	var args []any

	if u.Title != nil {
		updates = append(updates, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		updates = append(updates, "description = ?")
		args = append(args, *u.Description)
	}
	if u.AnnoyanceLevel != nil {
		updates = append(updates, "annoyance_level = ?")
		args = append(args, *u.AnnoyanceLevel)
	}
	if u.Category != nil {
		updates = append(updates, "category = ?")
		args = append(args, string(*u.Category))
	}
	if u.Status != nil {
		updates = append(updates, "status = ?")
		args = append(args, string(*u.Status))
		if *u.Status == friction.StatusFixed {
			updates = append(updates, "fixed_at = COALESCE(fixed_at, ?)")
			args = append(args, db.timestamp())
		} else {
			updates = append(updates, "fixed_at = NULL")
		}
	}
	switch {
	case u.ClearEncounterLimit:
		updates = append(updates, "encounter_limit = NULL")
	case u.EncounterLimit != nil:
		updates = append(updates, "encounter_limit = ?")
		args = append(args, *u.EncounterLimit)
	}
	if len(updates) == 0 {
		return db.GetItem(id)
	}

	updates = append(updates, "updated_at = ?")
	args = append(args, db.timestamp(), id)

	query := fmt.Sprintf("UPDATE friction_items SET %s WHERE id = ?", strings.Join(updates, ", "))
	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetItem(id)
}

// DeleteItem removes an item and its encounter history.
func (db *DB) DeleteItem(id int64) error {
	result, err := db.conn.Exec("DELETE FROM friction_items WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementEncounter records one encounter today. Counts from earlier days
// start over at zero.
func (db *DB) IncrementEncounter(id int64) (*friction.Item, error) {
	today := db.today()
	now := db.timestamp()

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status string
	var level, count int
	var lastDate *string
	err = tx.QueryRow(
		"SELECT status, annoyance_level, encounter_count, last_encounter_date FROM friction_items WHERE id = ?", id,
	).Scan(&status, &level, &count, &lastDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !friction.Status(status).IsActive() {
		return nil, ErrItemFixed
	}

	if lastDate == nil || *lastDate != today {
		count = 0
	}
	count++

	if _, err := tx.Exec(
		"UPDATE friction_items SET encounter_count = ?, last_encounter_date = ?, updated_at = ? WHERE id = ?",
		count, today, now, id,
	); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		"INSERT INTO encounters (item_id, encounter_date, annoyance_level, created_at) VALUES (?, ?, ?, ?)",
		id, today, level, now,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetItem(id)
}

// resetStaleCounts zeroes counts whose last encounter was before today.
func (db *DB) resetStaleCounts() error {
	_, err := db.conn.Exec(
		`UPDATE friction_items SET encounter_count = 0
		 WHERE encounter_count > 0 AND (last_encounter_date IS NULL OR last_encounter_date <> ?)`,
		db.today(),
	)
	return err
}

func scanItem(s scanner) (*friction.Item, error) {
	var it friction.Item
	var category, status, createdAt, updatedAt string
	var fixedAt *string
	if err := s.Scan(&it.ID, &it.Title, &it.Description, &it.AnnoyanceLevel, &category, &status,
		&createdAt, &updatedAt, &fixedAt, &it.EncounterCount, &it.EncounterLimit, &it.LastEncounterDate); err != nil {
		return nil, err
	}
	it.Category = friction.Category(category)
	it.Status = friction.Status(status)
	it.CreatedAt = parseTimestamp(createdAt)
	it.UpdatedAt = parseTimestamp(updatedAt)
	if fixedAt != nil {
		t := parseTimestamp(*fixedAt)
		it.FixedAt = &t
	}
	it.IsLimitExceeded = it.EncounterLimit != nil && it.EncounterCount >= *it.EncounterLimit
	return &it, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
