// Package sqlitedb opens the SQLite databases taskdeck services persist
// to, with the connection options every store shares.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/taskdeck/taskdeck/internal/platform/timeouts"
	_ "modernc.org/sqlite"
)

// Open opens the database at path with WAL journaling, the shared busy
// budget, and foreign key enforcement, and verifies connectivity.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// modernc.org/sqlite only honors the _pragma=name(value) form; the
	// mattn-style _journal_mode/_busy_timeout keys are ignored silently.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		filepath.Clean(path), timeouts.SQLiteBusy.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := verifyForeignKeys(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// verifyForeignKeys guards against driver configurations that drop the
// DSN pragma.
func verifyForeignKeys(sqlDB *sql.DB) error {
	var enabled int
	if err := sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}
