package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite implements Backend using modernc.org/sqlite (pure Go).
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path and
// creates the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	// Workers append concurrently; a single connection serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_results (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		tick        INTEGER NOT NULL,
		worker      TEXT NOT NULL,
		agent       TEXT NOT NULL,
		data        TEXT NOT NULL DEFAULT '{}',
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_agent_results_run ON agent_results(run_id, tick);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts a batch of records in one transaction.
func (s *SQLite) Append(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO agent_results (run_id, tick, worker, agent, data, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		data, err := json.Marshal(r.Values)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.Agent, err)
		}
		at := r.RecordedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Tick, r.Worker, r.Agent, string(data), at); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Records returns every record of runID ordered by tick, then insertion.
func (s *SQLite) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tick, worker, agent, data, recorded_at
		 FROM agent_results WHERE run_id = ? ORDER BY tick, id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var data string
		if err := rows.Scan(&r.RunID, &r.Tick, &r.Worker, &r.Agent, &data, &r.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &r.Values); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Agent, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Runs returns the distinct run IDs, oldest first.
func (s *SQLite) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM agent_results GROUP BY run_id ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// Clear deletes every record and compacts the file.
func (s *SQLite) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_results`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return int(n), fmt.Errorf("vacuum: %w", err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
