package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/previewd/internal/history"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements history.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordStart(ctx context.Context, rec *history.Record) error {
	rec.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, port, workdir, install_cmd, run_cmd, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Port, rec.Workdir, rec.InstallCmd, rec.RunCmd, rec.Status,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordFinish(ctx context.Context, runID, status string, exitCode int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, exit_code = ?, finished_at = ? WHERE run_id = ?`,
		status, exitCode, now, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, port, workdir, install_cmd, run_cmd, status, exit_code, created_at, finished_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run records: %w", err)
	}
	defer rows.Close()

	var records []history.Record
	for rows.Next() {
		var rec history.Record
		var exitCode sql.NullInt64
		var createdAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&rec.RunID, &rec.Port, &rec.Workdir, &rec.InstallCmd,
			&rec.RunCmd, &rec.Status, &exitCode, &createdAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}

		rec.ExitCode = -1
		if exitCode.Valid {
			rec.ExitCode = int(exitCode.Int64)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
				rec.FinishedAt = &t
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
