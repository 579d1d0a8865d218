package knowledge

import (
	"database/sql"
	"fmt"
)

const createKnowledgeEntriesTable = `
CREATE TABLE IF NOT EXISTS knowledge_entries (
	id           TEXT PRIMARY KEY,
	pattern      TEXT NOT NULL,
	category     TEXT NOT NULL,
	keywords     TEXT NOT NULL,
	remediations TEXT NOT NULL,
	confidence   REAL NOT NULL,
	rule         TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL
)`

const createErrorPatternsTable = `
CREATE TABLE IF NOT EXISTS error_patterns (
	id            TEXT PRIMARY KEY,
	code          TEXT NOT NULL,
	category      TEXT NOT NULL,
	extension     TEXT NOT NULL,
	message       TEXT NOT NULL,
	scope         TEXT NOT NULL DEFAULT '',
	usage_count   INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	confidence    REAL NOT NULL,
	last_seen     TEXT NOT NULL,
	solution      TEXT,
	last_attempt  TEXT
)`

const createVerifiedFixesTable = `
CREATE TABLE IF NOT EXISTS verified_fixes (
	id          TEXT PRIMARY KEY,
	pattern_id  TEXT NOT NULL,
	file        TEXT NOT NULL,
	code        TEXT NOT NULL,
	message     TEXT NOT NULL,
	original    TEXT NOT NULL,
	replacement TEXT NOT NULL,
	origin      TEXT NOT NULL,
	source_id   TEXT NOT NULL DEFAULT '',
	verified_at TEXT NOT NULL
)`

const createProjectMemoryTable = `
CREATE TABLE IF NOT EXISTS project_memory (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const createContextMemoryTable = `
CREATE TABLE IF NOT EXISTS context_memory (
	file       TEXT PRIMARY KEY,
	line       INTEGER NOT NULL,
	scope      TEXT NOT NULL,
	summary    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// CreateSchema creates the five knowledge collections.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"knowledge_entries", createKnowledgeEntriesTable},
		{"error_patterns", createErrorPatternsTable},
		{"verified_fixes", createVerifiedFixesTable},
		{"project_memory", createProjectMemoryTable},
		{"context_memory", createContextMemoryTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_verified_fixes_pattern ON verified_fixes(pattern_id)`); err != nil {
		return fmt.Errorf("failed to create verified_fixes index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
