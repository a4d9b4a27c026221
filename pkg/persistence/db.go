// Package persistence provides SQLite-backed history of refinement runs.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/alessiagatto/documenter-agent/pkg/logx"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB is a handle on the history database.
// The zero value is not usable; obtain one from Open.
type DB struct {
	db     *sql.DB
	logger *logx.Logger
	path   string
}

// Open opens (creating if needed) the history database at path and brings
// its schema up to CurrentSchemaVersion.
func Open(path string) (*DB, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; an in-memory database also only
	// exists for the lifetime of its single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	h := &DB{db: db, path: path, logger: logx.NewLogger("persistence")}
	h.logger.Debug("History database ready at %s", path)
	return h, nil
}

// Path returns the location the database was opened from.
func (h *DB) Path() string { return h.path }

// Close releases the underlying connection.
func (h *DB) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	if err := h.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SchemaVersion reports the version currently recorded in the database.
func (h *DB) SchemaVersion(_ context.Context) (int, error) {
	return GetSchemaVersion(h.db)
}
