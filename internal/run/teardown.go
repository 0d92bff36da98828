package run

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/agentforge/previewd/internal/history"
	"github.com/agentforge/previewd/internal/ports"
	"github.com/agentforge/previewd/internal/proc"
)

// Controller tears runs down. Every path is best effort: termination
// failures are logged and never propagate to API callers, so a stuck child
// can never block the API from reporting success.
type Controller struct {
	registry *Registry
	ports    *ports.Allocator
	history  history.Store // may be nil
	term     time.Duration
	kill     time.Duration
}

func newController(reg *Registry, alloc *ports.Allocator, hist history.Store, timeouts Timeouts) *Controller {
	return &Controller{
		registry: reg,
		ports:    alloc,
		history:  hist,
		term:     timeouts.TermTimeout,
		kill:     timeouts.KillTimeout,
	}
}

// Cleanup removes a run from the registry, terminates its process tree,
// releases the port, and deletes the workdir. Idempotent: concurrent calls
// race on the registry removal and exactly one performs the work. Reports
// whether the run was present.
func (c *Controller) Cleanup(id string) bool {
	r, ok := c.registry.Remove(id)
	if !ok {
		log.Printf("[%s] not found during cleanup", id)
		return false
	}
	log.Printf("[%s] cleaning up (port %d)", r.ID, r.Port)

	r.markStopping()
	c.terminate(r)

	r.Logs.Append("[system] Process finished. Cleaning up.")
	r.Logs.Close()

	if err := os.RemoveAll(r.Workdir); err != nil {
		log.Printf("[%s] removing workdir %s: %v", r.ID, r.Workdir, err)
	}
	c.ports.Release(r.Port)

	r.markTerminated()
	c.recordFinish(r)
	return true
}

// ForceStop is the direct teardown plus a port-scoped sweep for process
// trees the recorded handle does not reach. Returns the PIDs killed by the
// sweep and whether the run was known.
func (c *Controller) ForceStop(id string) ([]int32, bool) {
	r, ok := c.registry.Get(id)
	if !ok {
		return nil, false
	}
	port := r.Port

	c.Cleanup(id)

	killed, err := proc.KillByPort(port)
	if err != nil {
		log.Printf("[%s] port sweep on %d: %v", id, port, err)
	}
	return killed, true
}

// CleanupAll tears down every live run and returns how many were cleaned.
func (c *Controller) CleanupAll() int {
	cleaned := 0
	for _, r := range c.registry.List() {
		if c.Cleanup(r.ID) {
			cleaned++
		}
	}
	return cleaned
}

// terminate signals the child gracefully, escalates to SIGKILL, and gives
// up with a log line if the process refuses to die.
func (c *Controller) terminate(r *Run) {
	cmd := r.Process()
	if cmd == nil || cmd.Process == nil || r.Exited() {
		return
	}
	pid := cmd.Process.Pid

	log.Printf("[%s] terminating pid %d", r.ID, pid)
	signalGroup(pid, syscall.SIGTERM)
	if waitDone(r, c.term) {
		log.Printf("[%s] terminated gracefully", r.ID)
		return
	}

	log.Printf("[%s] did not terminate gracefully, force killing", r.ID)
	signalGroup(pid, syscall.SIGKILL)
	if waitDone(r, c.kill) {
		log.Printf("[%s] force killed", r.ID)
		return
	}

	log.Printf("[%s] could not be killed - it may be stuck", r.ID)
}

// signalGroup signals the child's whole process group, falling back to the
// single pid if the group is already gone.
func signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil {
		syscall.Kill(pid, sig)
	}
}

func waitDone(r *Run, timeout time.Duration) bool {
	select {
	case <-r.Done():
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *Controller) recordFinish(r *Run) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordFinish(context.Background(), r.ID, string(r.Status()), r.ExitCode()); err != nil {
		log.Printf("[%s] recording finish: %v", r.ID, err)
	}
}
