package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS friction_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT,
    annoyance_level INTEGER NOT NULL CHECK(annoyance_level BETWEEN 1 AND 5),
    category TEXT NOT NULL CHECK(category IN ('home', 'work', 'digital', 'health', 'other')),
    status TEXT NOT NULL DEFAULT 'not_fixed' CHECK(status IN ('not_fixed', 'in_progress', 'fixed')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    fixed_at TEXT,
    encounter_count INTEGER NOT NULL DEFAULT 0,
    encounter_limit INTEGER CHECK(encounter_limit IS NULL OR encounter_limit > 0),
    last_encounter_date TEXT
);

CREATE TABLE IF NOT EXISTS encounters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL REFERENCES friction_items(id) ON DELETE CASCADE,
    encounter_date TEXT NOT NULL,
    annoyance_level INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_friction_items_status ON friction_items(status);
CREATE INDEX IF NOT EXISTS idx_friction_items_category ON friction_items(category);
CREATE INDEX IF NOT EXISTS idx_encounters_date ON encounters(encounter_date);
CREATE INDEX IF NOT EXISTS idx_encounters_item ON encounters(item_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
