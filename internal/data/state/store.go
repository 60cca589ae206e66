// Package state persists module lifecycle states in SQLite and serves them to
// the dependency graph.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	coreerrors "modgraph/internal/core/errors"
	"modgraph/internal/data/sqldb"
	"modgraph/internal/engine/graph"
)

// queryChunk keeps IN (...) lists below SQLite's host parameter limit.
const queryChunk = 500

var migrations = []sqldb.Migration{
	{
		Version: 1,
		SQL: `
CREATE TABLE IF NOT EXISTS modules (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  state TEXT NOT NULL DEFAULT 'uninstalled',
  demo INTEGER NOT NULL DEFAULT 0,
  latest_version TEXT NOT NULL DEFAULT '',
  updated_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_modules_state ON modules(state);
`,
	},
	{
		Version: 2,
		SQL: `
ALTER TABLE modules ADD COLUMN imported INTEGER NOT NULL DEFAULT 0;
`,
	},
}

// Record is one row of the modules table.
type Record struct {
	ID            int64
	Name          string
	State         graph.State
	Demo          bool
	LatestVersion string
	Imported      bool
	UpdatedAt     time.Time
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	db, cleanPath, err := sqldb.Open(path, busyTimeout, migrations)
	if err != nil {
		return nil, err
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// States returns the rows for the requested names. Names without a row are
// omitted.
func (s *Store) States(ctx context.Context, names []string) ([]graph.ModuleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]graph.ModuleState, 0, len(names))
	for start := 0; start < len(names); start += queryChunk {
		end := min(start+queryChunk, len(names))
		chunk := names[start:end]

		args := make([]any, len(chunk))
		for i, name := range chunk {
			args[i] = name
		}
		query := `SELECT id, name, state, demo, latest_version FROM modules WHERE name IN (` +
			placeholders(len(chunk)) + `) ORDER BY name`

		records, err := s.queryRecords(ctx, "load states", query, args, func(rows *sql.Rows) (Record, error) {
			var rec Record
			err := rows.Scan(&rec.ID, &rec.Name, &rec.State, &rec.Demo, &rec.LatestVersion)
			return rec, err
		})
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			out = append(out, graph.ModuleState{
				Name:             rec.Name,
				ID:               rec.ID,
				State:            rec.State,
				Demo:             rec.Demo,
				InstalledVersion: rec.LatestVersion,
			})
		}
	}
	return out, nil
}

func (s *Store) ImportedModules(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryNames(ctx, "load imported modules", `SELECT name FROM modules WHERE imported = 1 ORDER BY name`)
}

// NamesByState lists, sorted, the modules whose state is one of states.
func (s *Store) NamesByState(ctx context.Context, states ...graph.State) ([]string, error) {
	if len(states) == 0 {
		return nil, nil
	}
	args := make([]any, len(states))
	for i, st := range states {
		if !st.Valid() {
			return nil, coreerrors.New(coreerrors.CodeValidationError, "unknown module state").
				WithContext(coreerrors.CtxState, string(st))
		}
		args[i] = string(st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	query := `SELECT name FROM modules WHERE state IN (` + placeholders(len(states)) + `) ORDER BY name`
	return s.queryNames(ctx, "load modules by state", query, args...)
}

// Record returns the full row for name.
func (s *Store) Record(ctx context.Context, name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, name, state, demo, latest_version, imported, updated_at_utc FROM modules WHERE name = ?`
	records, err := s.queryRecords(ctx, "load module", query, []any{name}, scanRecord)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, coreerrors.New(coreerrors.CodeNotFound, "module not found").
			WithContext(coreerrors.CtxModule, name)
	}
	return records[0], nil
}

// List returns every row ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := `SELECT id, name, state, demo, latest_version, imported, updated_at_utc FROM modules ORDER BY name`
	return s.queryRecords(ctx, "list modules", query, nil, scanRecord)
}

// Upsert inserts rec or updates the row with the same name. An empty state
// defaults to uninstalled.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return coreerrors.New(coreerrors.CodeValidationError, "module name must not be empty")
	}
	if rec.State == "" {
		rec.State = graph.StateUninstalled
	}
	if !rec.State.Valid() {
		return coreerrors.New(coreerrors.CodeValidationError, "unknown module state").
			WithContext(coreerrors.CtxModule, name).
			WithContext(coreerrors.CtxState, string(rec.State))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
INSERT INTO modules (name, state, demo, latest_version, imported, updated_at_utc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  state=excluded.state,
  demo=excluded.demo,
  latest_version=excluded.latest_version,
  imported=excluded.imported,
  updated_at_utc=excluded.updated_at_utc
`
	return sqldb.Retry(ctx, "upsert module", func() error {
		_, err := s.db.ExecContext(ctx, query,
			name, string(rec.State), rec.Demo, rec.LatestVersion, rec.Imported,
			sqldb.FormatTime(time.Now()),
		)
		return err
	})
}

// SetState moves an existing module to state.
func (s *Store) SetState(ctx context.Context, name string, state graph.State) error {
	if !state.Valid() {
		return coreerrors.New(coreerrors.CodeValidationError, "unknown module state").
			WithContext(coreerrors.CtxModule, name).
			WithContext(coreerrors.CtxState, string(state))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := sqldb.Retry(ctx, "set module state", func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE modules SET state = ?, updated_at_utc = ? WHERE name = ?`,
			string(state), sqldb.FormatTime(time.Now()), name,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return coreerrors.New(coreerrors.CodeNotFound, "module not found").
			WithContext(coreerrors.CtxModule, name)
	}
	return nil
}

// EnsureModule moves name to state, creating the row when it does not exist.
// Other columns of an existing row are left untouched.
func (s *Store) EnsureModule(ctx context.Context, name string, state graph.State) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return coreerrors.New(coreerrors.CodeValidationError, "module name must not be empty")
	}
	if !state.Valid() {
		return coreerrors.New(coreerrors.CodeValidationError, "unknown module state").
			WithContext(coreerrors.CtxModule, name).
			WithContext(coreerrors.CtxState, string(state))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
INSERT INTO modules (name, state, updated_at_utc) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  state=excluded.state,
  updated_at_utc=excluded.updated_at_utc
`
	return sqldb.Retry(ctx, "ensure module", func() error {
		_, err := s.db.ExecContext(ctx, query, name, string(state), sqldb.FormatTime(time.Now()))
		return err
	})
}

func (s *Store) queryNames(ctx context.Context, op, query string, args ...any) ([]string, error) {
	var names []string
	err := sqldb.Retry(ctx, op, func() error {
		names = names[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("scan module name: %w", err)
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args []any, scan func(*sql.Rows) (Record, error)) ([]Record, error) {
	var records []Record
	err := sqldb.Retry(ctx, op, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scan(rows)
			if err != nil {
				return fmt.Errorf("scan module row: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec     Record
		updated string
	)
	if err := rows.Scan(&rec.ID, &rec.Name, &rec.State, &rec.Demo, &rec.LatestVersion, &rec.Imported, &updated); err != nil {
		return rec, err
	}
	// Rows written by the migration default use SQLite's own format.
	if ts, err := sqldb.ParseTime(updated); err == nil {
		rec.UpdatedAt = ts
	} else if ts, err := time.Parse(time.DateTime, updated); err == nil {
		rec.UpdatedAt = ts.UTC()
	}
	return rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
