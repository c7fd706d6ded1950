// Package sqlitelog keeps the processing log in a local SQLite file.
package sqlitelog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS processing_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	run_date DATETIME NOT NULL,
	school_code TEXT NOT NULL,
	policy_name TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	duration_seconds REAL
);
CREATE INDEX IF NOT EXISTS idx_processing_log_run ON processing_log (run_id);
`

// Sink appends results to the processing_log table.
type Sink struct {
	db *sql.DB
}

// Open opens (and creates when needed) the database at path.
func Open(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create processing_log table: %w", err)
	}
	return &Sink{db: db}, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

// WriteResults inserts the batch in one transaction.
func (s *Sink) WriteResults(ctx context.Context, results []models.ProcessingResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin log transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO processing_log
		(run_id, run_date, school_code, policy_name, status, error_message, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.RunDate.UTC(), r.SchoolCode, r.PolicyName,
			string(r.Status), r.ErrorMessage, r.DurationSeconds); err != nil {
			return fmt.Errorf("failed to insert log entry %s-%s: %w", r.SchoolCode, r.PolicyName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log transaction: %w", err)
	}
	return nil
}

// Run returns the logged results of one run in insertion order.
func (s *Sink) Run(ctx context.Context, runID string) ([]models.ProcessingResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, run_date, school_code, policy_name, status, error_message, duration_seconds
		FROM processing_log WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.ProcessingResult
	for rows.Next() {
		var (
			r      models.ProcessingResult
			status string
			msg    sql.NullString
			date   time.Time
		)
		if err := rows.Scan(&r.RunID, &date, &r.SchoolCode, &r.PolicyName, &status, &msg, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		r.RunDate = date.UTC()
		r.Status = models.Status(status)
		r.ErrorMessage = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}
