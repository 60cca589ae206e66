package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

var testMigrations = []Migration{
	{Version: 1, SQL: `CREATE TABLE items (name TEXT PRIMARY KEY);`},
	{Version: 2, SQL: `ALTER TABLE items ADD COLUMN note TEXT NOT NULL DEFAULT '';`},
}

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "test.db")

	db, clean, err := Open(path, 500*time.Millisecond, testMigrations)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if clean != path {
		t.Fatalf("expected clean path %q, got %q", path, clean)
	}
	if _, err := db.Exec(`INSERT INTO items(name, note) VALUES ('a', 'b')`); err != nil {
		t.Fatalf("insert after migrations: %v", err)
	}
	if v, err := Version(db); err != nil || v != 2 {
		t.Fatalf("expected version 2, got %d (%v)", v, err)
	}
	_ = db.Close()

	db, _, err = Open(path, 0, testMigrations)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", count)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, _, err := Open(path, 0, testMigrations)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, _, err := Open(path, 0, testMigrations[:1]); err == nil {
		t.Fatal("expected error when database is newer than known migrations")
	}
}

func TestEnsureSchema_RejectsUnorderedMigrations(t *testing.T) {
	_, _, err := Open(filepath.Join(t.TempDir(), "test.db"), 0, []Migration{
		{Version: 2, SQL: `SELECT 1;`},
		{Version: 1, SQL: `SELECT 1;`},
	})
	if err == nil {
		t.Fatal("expected out-of-order migrations to fail")
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success after 3 attempts, got %d (%v)", attempts, err)
	}

	attempts = 0
	boom := errors.New("constraint failed")
	err = Retry(context.Background(), "op", func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) || attempts != 1 {
		t.Fatalf("expected single attempt for non-lock error, got %d (%v)", attempts, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(ctx, "op", func() error { return errors.New("database is locked") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsLockError(nil) || IsCorruptError(nil) {
		t.Fatal("nil errors are never classified")
	}
	if !IsLockError(errors.New("SQLITE_BUSY: database is locked")) {
		t.Fatal("expected busy error to be a lock error")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6, time.FixedZone("x", 3600))
	got, err := ParseTime(FormatTime(ts))
	if err != nil || !got.Equal(ts) || got.Location() != time.UTC {
		t.Fatalf("unexpected round trip %v (%v)", got, err)
	}
}
