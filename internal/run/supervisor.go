package run

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/agentforge/previewd/internal/detect"
	"github.com/agentforge/previewd/internal/history"
	"github.com/agentforge/previewd/internal/ports"
	"github.com/agentforge/previewd/internal/vfs"
)

// Timeouts bundles the supervisor's bounded waits.
type Timeouts struct {
	GracePeriod    time.Duration // startup wait before creation reports success
	InstallTimeout time.Duration // cap on the synchronous install command
	TermTimeout    time.Duration // graceful-termination wait
	KillTimeout    time.Duration // post-SIGKILL wait
}

// DefaultTimeouts mirror the intervals the preview flow was tuned for.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		GracePeriod:    5 * time.Second,
		InstallTimeout: 5 * time.Minute,
		TermTimeout:    3 * time.Second,
		KillTimeout:    2 * time.Second,
	}
}

// Supervisor launches runs and owns their whole lifecycle. All blocking
// work (install, spawn, stream reading, process wait) happens on background
// goroutines; Launch itself blocks only for the startup grace period.
type Supervisor struct {
	registry *Registry
	ports    *ports.Allocator
	detector *detect.Detector
	teardown *Controller
	timeouts Timeouts
	history  history.Store // may be nil
}

// NewSupervisor creates a Supervisor and its teardown controller. history
// may be nil to disable the audit log.
func NewSupervisor(reg *Registry, alloc *ports.Allocator, det *detect.Detector, hist history.Store, timeouts Timeouts) *Supervisor {
	return &Supervisor{
		registry: reg,
		ports:    alloc,
		detector: det,
		teardown: newController(reg, alloc, hist, timeouts),
		timeouts: timeouts,
		history:  hist,
	}
}

// Registry exposes the run table for read-side consumers (log streams,
// proxy, debug listing).
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Teardown exposes the teardown controller.
func (s *Supervisor) Teardown() *Controller {
	return s.teardown
}

// Launch materializes the tree, resolves commands, registers the run, and
// starts execution in the background. It returns an error if the project
// cannot be detected or if the child dies within the startup grace period.
func (s *Supervisor) Launch(tree vfs.Tree) (*Run, error) {
	name := "previewd_run_" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	workdir := filepath.Join(os.TempDir(), name)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workdir: %w", err)
	}
	// The run id is the materialized directory's name.
	id := filepath.Base(workdir)

	log.Printf("[%s] writing project to %s", id, workdir)
	if err := vfs.Materialize(tree, workdir); err != nil {
		os.RemoveAll(workdir)
		return nil, fmt.Errorf("materializing project: %w", err)
	}

	port, err := s.ports.Acquire()
	if err != nil {
		os.RemoveAll(workdir)
		return nil, err
	}

	cmds, err := s.detector.Detect(workdir, port)
	if err != nil {
		s.ports.Release(port)
		os.RemoveAll(workdir)
		return nil, err
	}
	log.Printf("[%s] port %d, install %q, run %q in %s", id, port, cmds.Install, cmds.Run, cmds.Dir)

	r := newRun(id, port, workdir, cmds)
	r.Logs.Append("[system] Starting project setup...")
	s.registry.Add(r)
	s.recordStart(r)

	go s.execute(r)

	// Grace period: distinguish a started process from one that crashed
	// immediately. A dead run must never be reported as a success.
	timer := time.NewTimer(s.timeouts.GracePeriod)
	select {
	case <-r.Done():
	case <-timer.C:
	}
	timer.Stop()

	if r.Exited() || r.Status() == StatusFailed {
		tail := r.Logs.Lines()
		if len(tail) > 20 {
			tail = tail[len(tail)-20:]
		}
		// Tear down synchronously so a failed creation leaves no trace.
		// The deferred cleanup in execute is a no-op after this.
		s.teardown.Cleanup(id)
		return nil, fmt.Errorf("run %s exited during startup:\n%s", id, strings.Join(tail, "\n"))
	}
	return r, nil
}

// execute runs the install command, spawns the child, and drains its
// output until exit. It always ends in teardown.
func (s *Supervisor) execute(r *Run) {
	defer s.teardown.Cleanup(r.ID)

	if r.Commands.Install != "" {
		r.setStatus(StatusInstalling)
		if err := s.runInstall(r); err != nil {
			r.Logs.Append("[error] " + err.Error())
			log.Printf("[%s] %v", r.ID, err)
			r.setStatus(StatusFailed)
			r.finishProcess(-1)
			return
		}
	}

	r.setStatus(StatusStarting)
	r.Logs.Append("[run] Starting: " + r.Commands.Run)
	r.Logs.Append("[run] Working directory: " + r.Commands.Dir)
	r.Logs.Append(fmt.Sprintf("[run] Port: %d", r.Port))

	cmd := exec.Command("sh", "-c", r.Commands.Run)
	cmd.Dir = r.Commands.Dir
	cmd.Env = append(os.Environ(), r.Commands.Env...)
	// Own process group so teardown can signal shell-spawned grandchildren.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.failSpawn(r, err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.failSpawn(r, err)
		return
	}

	if err := cmd.Start(); err != nil {
		s.failSpawn(r, err)
		return
	}

	// The handle is recorded before the readers start, so output can never
	// be observed on a handle-less run.
	r.setProcess(cmd)
	log.Printf("[%s] started pid %d on port %d", r.ID, cmd.Process.Pid, r.Port)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.readStream(r, stdout, "stdout", &wg)
	go s.readStream(r, stderr, "stderr", &wg)

	// Promote to RUNNING once the grace period passes with the child alive.
	go func() {
		select {
		case <-r.Done():
		case <-time.After(s.timeouts.GracePeriod):
			r.markRunning()
		}
	}()

	wg.Wait()
	werr := cmd.Wait()

	code := 0
	if werr != nil {
		if exitErr, ok := werr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
			log.Printf("[%s] wait: %v", r.ID, werr)
		}
	}
	log.Printf("[%s] process exited with code %d", r.ID, code)
	r.finishProcess(code)
}

// failSpawn marks a run FAILED when the child could not be started.
func (s *Supervisor) failSpawn(r *Run, err error) {
	r.Logs.Append("[error] Error running project: " + err.Error())
	log.Printf("[%s] spawn failed: %v", r.ID, err)
	r.setStatus(StatusFailed)
	r.finishProcess(-1)
}

// runInstall executes the install command synchronously, relaying its
// combined output to the log stream.
func (s *Supervisor) runInstall(r *Run) error {
	r.Logs.Append("[install] Running: " + r.Commands.Install)
	log.Printf("[%s] installing dependencies: %s", r.ID, r.Commands.Install)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.InstallTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", r.Commands.Install)
	cmd.Dir = r.Commands.Dir
	cmd.Env = append(os.Environ(), r.Commands.Env...)

	out, err := cmd.CombinedOutput()
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			r.Logs.Append("[install] " + line)
		}
	}
	if err != nil {
		return fmt.Errorf("install command failed: %w", err)
	}
	return nil
}

// readStream drains one output pipe into the log buffer, prefixed with the
// stream name, until end-of-stream.
func (s *Supervisor) readStream(r *Run, pipe io.Reader, name string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.Logs.Append("[" + name + "] " + scanner.Text())
	}
}

func (s *Supervisor) recordStart(r *Run) {
	if s.history == nil {
		return
	}
	rec := &history.Record{
		RunID:      r.ID,
		Port:       r.Port,
		Workdir:    r.Workdir,
		InstallCmd: r.Commands.Install,
		RunCmd:     r.Commands.Run,
		Status:     string(StatusCreated),
	}
	if err := s.history.RecordStart(context.Background(), rec); err != nil {
		log.Printf("[%s] recording history: %v", r.ID, err)
	}
}
