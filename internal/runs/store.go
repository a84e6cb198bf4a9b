// Package runs persists a history of finished agent runs in a local
// SQLite database for later inspection. The store is optional; a nil
// *Store disables recording.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/operator/pkg/models"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeError    Outcome = "error"
)

// RunRecord is one finished agent run.
type RunRecord struct {
	ID         string        `json:"id"`
	Goal       string        `json:"goal"`
	SessionID  string        `json:"sessionId"`
	ContextID  string        `json:"contextId"`
	Outcome    Outcome       `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Steps      []models.Step `json:"steps"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	goal        TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	context_id  TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	steps       TEXT NOT NULL DEFAULT '[]',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the run store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one finished run. A nil store is a no-op so callers can
// record unconditionally.
func (s *Store) Record(ctx context.Context, rec *RunRecord) error {
	if s == nil {
		return nil
	}
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, goal, session_id, context_id, outcome, error, steps, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Goal, rec.SessionID, rec.ContextID, string(rec.Outcome), rec.Error,
		string(steps), rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal, session_id, context_id, outcome, error, steps, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		var rec RunRecord
		var outcome, steps string
		if err := rows.Scan(&rec.ID, &rec.Goal, &rec.SessionID, &rec.ContextID,
			&outcome, &rec.Error, &steps, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		if err := json.Unmarshal([]byte(steps), &rec.Steps); err != nil {
			return nil, fmt.Errorf("decode steps for run %s: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
