// Package run owns the lifecycle of sandboxed executions: the run model,
// the shared registry, the process supervisor, and teardown.
package run

import (
	"os/exec"
	"sync"

	"github.com/agentforge/previewd/internal/detect"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusInstalling Status = "installing"
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusStopping   Status = "stopping"
	StatusTerminated Status = "terminated"
	StatusFailed     Status = "failed"
)

// Run is one sandboxed execution of a generated project.
type Run struct {
	ID       string
	Port     int
	Workdir  string
	Commands detect.Commands
	Logs     *Buffer

	mu       sync.Mutex
	status   Status
	cmd      *exec.Cmd
	exitCode int
	done     chan struct{} // closed once the child has been waited on
}

func newRun(id string, port int, workdir string, cmds *detect.Commands) *Run {
	return &Run{
		ID:       id,
		Port:     port,
		Workdir:  workdir,
		Commands: *cmds,
		Logs:     NewBuffer(),
		status:   StatusCreated,
		exitCode: -1,
		done:     make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// markRunning flips STARTING to RUNNING. Any other state is left alone, so
// a run that already failed or is being torn down cannot re-enter RUNNING.
func (r *Run) markRunning() {
	r.mu.Lock()
	if r.status == StatusStarting {
		r.status = StatusRunning
	}
	r.mu.Unlock()
}

// markStopping records that teardown has begun. A FAILED run keeps its
// state for the audit trail.
func (r *Run) markStopping() {
	r.mu.Lock()
	if r.status != StatusFailed {
		r.status = StatusStopping
	}
	r.mu.Unlock()
}

// markTerminated records the final state after cleanup, preserving FAILED.
func (r *Run) markTerminated() {
	r.mu.Lock()
	if r.status != StatusFailed {
		r.status = StatusTerminated
	}
	r.mu.Unlock()
}

// Process returns the child handle, or nil before spawn.
func (r *Run) Process() *exec.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd
}

// setProcess records the child handle. Called exactly once, after spawn and
// before the output readers start.
func (r *Run) setProcess(cmd *exec.Cmd) {
	r.mu.Lock()
	if r.cmd == nil {
		r.cmd = cmd
	}
	r.mu.Unlock()
}

// finishProcess records the exit code and marks the child as gone.
func (r *Run) finishProcess(code int) {
	r.mu.Lock()
	r.exitCode = code
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	r.mu.Unlock()
}

// Done is closed once the child process has exited (or failed to spawn).
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Exited reports whether the child process is gone.
func (r *Run) Exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the recorded exit code, or -1 if unknown.
func (r *Run) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// Summary is the debug-listing view of a run.
type Summary struct {
	ID           string `json:"run_id"`
	Port         int    `json:"port"`
	Workdir      string `json:"workdir"`
	Status       Status `json:"status"`
	HasProcess   bool   `json:"has_process"`
	ProcessAlive bool   `json:"process_alive"`
}

// Summary snapshots the run for the active-runs listing.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	hasProc := r.cmd != nil
	status := r.status
	r.mu.Unlock()

	return Summary{
		ID:           r.ID,
		Port:         r.Port,
		Workdir:      r.Workdir,
		Status:       status,
		HasProcess:   hasProc,
		ProcessAlive: hasProc && !r.Exited(),
	}
}
