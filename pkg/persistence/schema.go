package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 2

// initializeSchemaWithMigrations ensures the database schema is at the current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Empty database: create the latest schema directly.
	if currentVersion == 0 {
		return createSchema(db)
	}

	if currentVersion == CurrentSchemaVersion {
		return nil
	}
	if currentVersion > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	}

	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

// runMigrations applies database migrations from current version to target version.
func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

// runMigration applies a specific version migration.
func runMigration(db *sql.DB, version int) error {
	switch version {
	case 2:
		return migrateToVersion2(db)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrateToVersion2 records token usage and image availability per refinement.
func migrateToVersion2(db *sql.DB) error {
	migrations := []string{
		"ALTER TABLE refinements ADD COLUMN feedback_tokens INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE refinements ADD COLUMN image_available INTEGER NOT NULL DEFAULT 0",
		"CREATE INDEX IF NOT EXISTS idx_refinements_type ON refinements(diagram_type)",
	}
	return execAll(db, migrations)
}

// createSchema creates all required tables and indices at the current version.
func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			architecture_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running','completed','failed')),
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS refinements (
			id TEXT PRIMARY KEY,
			run_id TEXT REFERENCES runs(id) ON DELETE CASCADE,
			architecture_id TEXT NOT NULL,
			diagram_type TEXT NOT NULL,
			view TEXT NOT NULL DEFAULT '',
			final_state TEXT NOT NULL,
			refined INTEGER NOT NULL DEFAULT 0,
			partial INTEGER NOT NULL DEFAULT 0,
			feedback TEXT NOT NULL DEFAULT '',
			rules TEXT NOT NULL DEFAULT '[]',
			rules_added TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			feedback_tokens INTEGER NOT NULL DEFAULT 0,
			image_available INTEGER NOT NULL DEFAULT 0
		)`,

		"CREATE INDEX IF NOT EXISTS idx_refinements_run ON refinements(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_refinements_type ON refinements(diagram_type)",
	}

	if err := execAll(db, statements); err != nil {
		return err
	}
	return setSchemaVersion(db, CurrentSchemaVersion)
}

func execAll(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// setSchemaVersion records the schema version in the database.
func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", version)
	if err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the highest applied schema version, or 0 for an empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version sql.NullInt64
	err = db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) || !version.Valid {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
