// Package history keeps a log of resolved load plans.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"modgraph/internal/data/sqldb"
)

var migrations = []sqldb.Migration{
	{
		Version: 1,
		SQL: `
CREATE TABLE IF NOT EXISTS plans (
  run_id TEXT PRIMARY KEY,
  mode TEXT NOT NULL,
  ts_utc TEXT NOT NULL,
  module_count INTEGER NOT NULL,
  pruned_count INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  order_json TEXT NOT NULL,
  pruned_json TEXT NOT NULL,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_plans_ts ON plans(ts_utc);
`,
	},
	{
		Version: 2,
		SQL: `
ALTER TABLE plans ADD COLUMN auto_installed_json TEXT NOT NULL DEFAULT '[]';
`,
	},
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	db, cleanPath, err := sqldb.Open(path, 0, migrations)
	if err != nil {
		return nil, fmt.Errorf("open plan history: %w", err)
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

// SavePlan persists plan, filling in a run id and timestamp when missing,
// and returns the stored record.
func (s *Store) SavePlan(ctx context.Context, plan PlanRecord) (PlanRecord, error) {
	plan.Mode = strings.TrimSpace(plan.Mode)
	if plan.Mode == "" {
		return plan, fmt.Errorf("plan mode must not be empty")
	}
	if plan.RunID == "" {
		plan.RunID = uuid.NewString()
	}
	if plan.Timestamp.IsZero() {
		plan.Timestamp = time.Now()
	}
	plan.Timestamp = plan.Timestamp.UTC()
	if plan.Order == nil {
		plan.Order = []string{}
	}
	if plan.Pruned == nil {
		plan.Pruned = []PrunedModule{}
	}
	if plan.AutoInstalled == nil {
		plan.AutoInstalled = []string{}
	}

	orderJSON, err := json.Marshal(plan.Order)
	if err != nil {
		return plan, fmt.Errorf("encode plan order: %w", err)
	}
	prunedJSON, err := json.Marshal(plan.Pruned)
	if err != nil {
		return plan, fmt.Errorf("encode pruned modules: %w", err)
	}
	autoJSON, err := json.Marshal(plan.AutoInstalled)
	if err != nil {
		return plan, fmt.Errorf("encode auto-installed modules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
INSERT INTO plans (
  run_id, mode, ts_utc, module_count, pruned_count, duration_ms, order_json, pruned_json, auto_installed_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	err = sqldb.Retry(ctx, "save plan", func() error {
		_, err := s.db.ExecContext(ctx, query,
			plan.RunID,
			plan.Mode,
			sqldb.FormatTime(plan.Timestamp),
			len(plan.Order),
			len(plan.Pruned),
			plan.Duration.Milliseconds(),
			string(orderJSON),
			string(prunedJSON),
			string(autoJSON),
		)
		return err
	})
	return plan, err
}

// LoadPlans returns up to limit plans, newest first. A non-positive limit
// returns every plan.
func (s *Store) LoadPlans(ctx context.Context, limit int) ([]PlanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT run_id, mode, ts_utc, duration_ms, order_json, pruned_json, auto_installed_json
FROM plans
ORDER BY ts_utc DESC, run_id DESC
`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var plans []PlanRecord
	err := sqldb.Retry(ctx, "load plans", func() error {
		plans = plans[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			plan, err := scanPlan(rows)
			if err != nil {
				return err
			}
			plans = append(plans, plan)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate plan rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// Prune keeps the newest keep plans and deletes the rest, returning how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := sqldb.Retry(ctx, "prune plans", func() error {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM plans WHERE run_id NOT IN (
  SELECT run_id FROM plans ORDER BY ts_utc DESC, run_id DESC LIMIT ?
)`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func scanPlan(rows *sql.Rows) (PlanRecord, error) {
	var (
		plan       PlanRecord
		tsRaw      string
		durationMS int64
		orderRaw   string
		prunedRaw  string
		autoRaw    string
	)
	if err := rows.Scan(&plan.RunID, &plan.Mode, &tsRaw, &durationMS, &orderRaw, &prunedRaw, &autoRaw); err != nil {
		return plan, fmt.Errorf("scan plan row: %w", err)
	}

	ts, err := sqldb.ParseTime(tsRaw)
	if err != nil {
		return plan, fmt.Errorf("parse plan timestamp %q: %w", tsRaw, err)
	}
	plan.Timestamp = ts
	plan.Duration = time.Duration(durationMS) * time.Millisecond

	if err := json.Unmarshal([]byte(orderRaw), &plan.Order); err != nil {
		return plan, fmt.Errorf("decode plan order %s: %w", plan.RunID, err)
	}
	if err := json.Unmarshal([]byte(prunedRaw), &plan.Pruned); err != nil {
		return plan, fmt.Errorf("decode pruned modules %s: %w", plan.RunID, err)
	}
	if err := json.Unmarshal([]byte(autoRaw), &plan.AutoInstalled); err != nil {
		return plan, fmt.Errorf("decode auto-installed modules %s: %w", plan.RunID, err)
	}
	return plan, nil
}
