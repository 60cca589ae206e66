// Package sqldb opens the SQLite databases backing the state and history
// stores.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	DriverName         = "sqlite"
	DefaultBusyTimeout = 2 * time.Second
	maxAttempts        = 5
)

// Open opens (creating when missing) the SQLite file at path and applies
// migrations. The pool is limited to a single connection.
func Open(path string, busyTimeout time.Duration, migrations []Migration) (*sql.DB, string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, "", fmt.Errorf("database path must not be empty")
	}
	if cleanPath != ":memory:" {
		if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
			return nil, "", fmt.Errorf("database path %q is a directory, expected file", cleanPath)
		}
		dir := filepath.Dir(cleanPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", fmt.Errorf("create database directory %q: %w", dir, err)
			}
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds(),
	)
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping sqlite %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db, migrations); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return db, cleanPath, nil
}

// Retry runs fn until it succeeds, fails with a non-lock error, or the
// attempts run out. Backoff grows linearly.
func Retry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsLockError(err) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(time.Duration(attempt*25) * time.Millisecond):
		}
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}

// FormatTime renders t the way timestamps are stored in every table.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseTime(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
