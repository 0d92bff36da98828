// Package history is the audit log of runs. It records what was launched
// and how it ended; the in-memory registry stays the only source of truth
// for live runs, and nothing is ever re-adopted from here after a restart.
package history

import (
	"context"
	"time"
)

// Record is one run's audit entry.
type Record struct {
	RunID      string     `json:"run_id"`
	Port       int        `json:"port"`
	Workdir    string     `json:"workdir"`
	InstallCmd string     `json:"install_command"`
	RunCmd     string     `json:"run_command"`
	Status     string     `json:"status"`
	ExitCode   int        `json:"exit_code"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store is the persistence interface for run history.
type Store interface {
	// RecordStart inserts a new record at run creation.
	RecordStart(ctx context.Context, rec *Record) error

	// RecordFinish stamps the final status and exit code of a run.
	RecordFinish(ctx context.Context, runID, status string, exitCode int) error

	// List returns records ordered by creation time descending.
	List(ctx context.Context, limit int) ([]Record, error)

	// Close releases resources.
	Close() error
}
