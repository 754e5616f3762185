// Package journal keeps every message published during a run in a local
// SQLite database so past runs can be inspected after the process exits.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kingrea/ipu-gate/internal/message"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages(
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	actor TEXT NOT NULL,
	phase TEXT,
	created_at INTEGER NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY(run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_messages_kind ON messages(run_id, kind);
CREATE TABLE IF NOT EXISTS runs(
	run_id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT,
	finished_at INTEGER NOT NULL
);`

// ErrRunNotFound is returned when a run id has no journaled messages.
var ErrRunNotFound = errors.New("journal: run not found")

// Journal is a SQLite-backed message log.
type Journal struct {
	db   *sql.DB
	path string
}

// RunSummary describes one journaled run. WorkflowID, Status and Reason stay
// empty when the run never finished.
type RunSummary struct {
	RunID      string
	WorkflowID string
	Status     string
	Reason     string
	Messages   int
	Inhibitors int
	FirstSeen  time.Time
}

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Record appends env under runID. Recording the same sequence twice replaces
// the earlier row.
func (j *Journal) Record(ctx context.Context, runID string, env message.Envelope) error {
	if env.Payload == nil {
		return fmt.Errorf("journal: message %d has no payload", env.Seq)
	}
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("journal: encode message %d: %w", env.Seq, err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages(run_id, seq, kind, actor, phase, created_at, payload) VALUES(?,?,?,?,?,?,?)`,
		runID, env.Seq, string(env.Kind), env.Actor, env.Phase, env.CreatedAt.UTC().UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("journal: insert message %d: %w", env.Seq, err)
	}
	return nil
}

// List returns the messages of runID in sequence order.
func (j *Journal) List(ctx context.Context, runID string) ([]message.Envelope, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, kind, actor, phase, created_at, payload FROM messages WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: list %s: %w", runID, err)
	}
	defer rows.Close()
	var out []message.Envelope
	for rows.Next() {
		var (
			env     message.Envelope
			kind    string
			phase   sql.NullString
			created int64
			payload string
		)
		if err := rows.Scan(&env.Seq, &kind, &env.Actor, &phase, &created, &payload); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		env.Kind = message.Kind(kind)
		env.Phase = phase.String
		env.CreatedAt = time.Unix(0, created).UTC()
		env.Payload, err = message.DecodePayload(env.Kind, []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

// Finish stores the final status of runID. Finishing a run again overwrites
// the earlier status.
func (j *Journal) Finish(ctx context.Context, runID, workflowID, status, reason string, at time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs(run_id, workflow_id, status, reason, finished_at) VALUES(?,?,?,?,?)`,
		runID, workflowID, status, reason, at.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("journal: finish %s: %w", runID, err)
	}
	return nil
}

const summaryQuery = `SELECT m.run_id, COALESCE(r.workflow_id, ''), COALESCE(r.status, ''), COALESCE(r.reason, ''),
	COUNT(*), SUM(CASE WHEN m.kind=? THEN 1 ELSE 0 END), MIN(m.created_at)
	FROM messages m LEFT JOIN runs r ON r.run_id = m.run_id`

// Runs summarizes every journaled run, oldest first.
func (j *Journal) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		summaryQuery+` GROUP BY m.run_id ORDER BY MIN(m.created_at), m.run_id`, string(message.KindInhibitor))
	if err != nil {
		return nil, fmt.Errorf("journal: runs: %w", err)
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Run summarizes a single run.
func (j *Journal) Run(ctx context.Context, runID string) (RunSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		summaryQuery+` WHERE m.run_id=? GROUP BY m.run_id`, string(message.KindInhibitor), runID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("journal: run %s: %w", runID, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return RunSummary{}, fmt.Errorf("journal: run %s: %w", runID, err)
		}
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return scanSummary(rows)
}

func scanSummary(rows *sql.Rows) (RunSummary, error) {
	var (
		summary RunSummary
		first   int64
	)
	if err := rows.Scan(&summary.RunID, &summary.WorkflowID, &summary.Status, &summary.Reason,
		&summary.Messages, &summary.Inhibitors, &first); err != nil {
		return RunSummary{}, fmt.Errorf("journal: scan: %w", err)
	}
	summary.FirstSeen = time.Unix(0, first).UTC()
	return summary, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
