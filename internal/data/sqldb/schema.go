package sqldb

import (
	"database/sql"
	"fmt"
)

// Migration is one forward-only schema step. Versions must be ascending.
type Migration struct {
	Version int
	SQL     string
}

// EnsureSchema applies every migration newer than the version recorded in
// schema_migrations, each in its own transaction.
func EnsureSchema(db *sql.DB, migrations []Migration) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	latest := 0
	for _, m := range migrations {
		if m.Version <= latest {
			return fmt.Errorf("migration %d is out of order", m.Version)
		}
		latest = m.Version
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// Version reports the highest applied migration.
func Version(db *sql.DB) (int, error) {
	var current int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	return current, err
}
