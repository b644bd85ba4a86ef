package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const globalLimitKey = "global_daily_limit"

// GlobalLimit returns the global daily limit, nil if none is set.
func (db *DB) GlobalLimit() (*int, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", globalLimitKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", globalLimitKey, err)
	}
	return &n, nil
}

// SetGlobalLimit stores the global daily limit; nil removes it.
func (db *DB) SetGlobalLimit(limit *int) error {
	if limit == nil {
		_, err := db.conn.Exec("DELETE FROM settings WHERE key = ?", globalLimitKey)
		return err
	}
	_, err := db.conn.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		globalLimitKey, strconv.Itoa(*limit),
	)
	return err
}
