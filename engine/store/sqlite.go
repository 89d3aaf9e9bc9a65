package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/caseflow-io/caseengine/engine"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists CaseState snapshots in a single SQLite table, one
// row per case, the whole snapshot serialized as a JSON column — grounded
// on graph/store/sqlite.go's single-file, WAL-mode, zero-setup design, but
// with a one-table schema since this engine persists one document per case
// rather than a step history plus labeled checkpoints.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// ensures its schema exists. path may be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS cases (
	case_id    TEXT PRIMARY KEY,
	snapshot   TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get loads and deserializes the snapshot for caseID.
func (s *SQLiteStore) Get(ctx context.Context, caseID string) (engine.CaseState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM cases WHERE case_id = ?`, caseID).Scan(&raw)
	if err == sql.ErrNoRows {
		return engine.CaseState{}, engine.ErrCaseNotFound
	}
	if err != nil {
		return engine.CaseState{}, fmt.Errorf("query case %s: %w", caseID, err)
	}
	var cs engine.CaseState
	if err := json.Unmarshal([]byte(raw), &cs); err != nil {
		return engine.CaseState{}, fmt.Errorf("decode case %s: %w", caseID, err)
	}
	return cs, nil
}

// Put serializes state and upserts it by case_id.
func (s *SQLiteStore) Put(ctx context.Context, state engine.CaseState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode case %s: %w", state.CaseID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO cases (case_id, snapshot, updated_at) VALUES (?, ?, ?)
ON CONFLICT(case_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at
`, state.CaseID, string(raw), state.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert case %s: %w", state.CaseID, err)
	}
	return nil
}

// Delete removes the row for caseID, if present.
func (s *SQLiteStore) Delete(ctx context.Context, caseID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE case_id = ?`, caseID)
	if err != nil {
		return fmt.Errorf("delete case %s: %w", caseID, err)
	}
	return nil
}
