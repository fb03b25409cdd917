// Package decisionlog persists a per-turn audit trail of the agent's
// reasoning decisions: what the user asked, how the turn was
// classified, which tool (if any) ran, and what was answered. This is
// operational telemetry for reviewing agent behavior, not conversation
// state; the agent never reads it back.
package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ivivacare/smartclinic/internal/agent"
)

// Record is one stored turn.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Utterance string    `json:"utterance"`
	Intent    string    `json:"intent"`
	Decision  string    `json:"decision"`
	Action    string    `json:"action,omitempty"`
	Reasoning string    `json:"reasoning"`
	Answer    string    `json:"answer"`
}

// Store is an append-mostly SQLite log of agent turns. Safe for
// concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the decision log at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id         TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		utterance  TEXT NOT NULL,
		intent     TEXT NOT NULL,
		decision   TEXT NOT NULL,
		action     TEXT NOT NULL DEFAULT '',
		reasoning  TEXT NOT NULL DEFAULT '',
		answer     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_created_at
		ON decisions (created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordTurn appends one turn. Implements agent.DecisionRecorder.
func (s *Store) RecordTurn(ctx context.Context, rec agent.TurnRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, created_at, utterance, intent, decision, action, reasoning, answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		time.Now().UTC().Format(time.RFC3339Nano),
		rec.Utterance, rec.Intent, rec.Decision, rec.Action, rec.Reasoning, rec.Answer,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Recent returns up to limit turns, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, utterance, intent, decision, action, reasoning, answer
		 FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Utterance, &r.Intent, &r.Decision, &r.Action, &r.Reasoning, &r.Answer); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}
