package run

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/agentforge/previewd/internal/detect"
	"github.com/agentforge/previewd/internal/ports"
	"github.com/agentforge/previewd/internal/vfs"
)

// testTimeouts keep the startup grace period short so tests stay fast.
func testTimeouts() Timeouts {
	return Timeouts{
		GracePeriod:    450 * time.Millisecond,
		InstallTimeout: 10 * time.Second,
		TermTimeout:    time.Second,
		KillTimeout:    time.Second,
	}
}

// testSupervisor wires a supervisor whose detector rules map fake framework
// names to plain shell commands, so tests need nothing beyond sh.
func testSupervisor(t *testing.T, rules detect.Rules) *Supervisor {
	t.Helper()
	reg := NewRegistry()
	alloc := ports.NewAllocator(43000, 43999)
	return NewSupervisor(reg, alloc, detect.New(rules), nil, testTimeouts())
}

func shRules(run string) detect.Rules {
	return detect.Rules{
		Python:          []detect.FrameworkRule{{Name: "testfw", Run: run, Install: "true"}},
		EntryCandidates: []string{"main.py"},
	}
}

func waitForLog(t *testing.T, r *Run, substr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, line := range r.Logs.Lines() {
			if strings.Contains(line, substr) {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("log never contained %q; lines: %v", substr, r.Logs.Lines())
}

func TestLaunch_StartsAndStops(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 30"))

	tree := vfs.Tree{"requirements.txt": {Content: "testfw\n"}}
	r, err := s.Launch(tree)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Registry().Get(r.ID); !ok {
		t.Error("run missing from registry after launch")
	}
	if r.Process() == nil {
		t.Error("process handle not recorded")
	}
	if st := r.Status(); st != StatusStarting && st != StatusRunning {
		t.Errorf("status = %s after successful launch", st)
	}

	if !s.Teardown().Cleanup(r.ID) {
		t.Error("cleanup reported run missing")
	}

	if _, ok := s.Registry().Get(r.ID); ok {
		t.Error("run still listed after stop")
	}
	if _, err := os.Stat(r.Workdir); !os.IsNotExist(err) {
		t.Errorf("workdir survived teardown: %v", err)
	}
	if r.Status() != StatusTerminated {
		t.Errorf("final status = %s", r.Status())
	}
}

func TestLaunch_ImmediateCrashIsFailure(t *testing.T) {
	s := testSupervisor(t, shRules("exit 7"))

	tree := vfs.Tree{"requirements.txt": {Content: "testfw\n"}}
	_, err := s.Launch(tree)
	if err == nil {
		t.Fatal("creation reported success for a run that died in the grace period")
	}
	if s.Registry().Len() != 0 {
		t.Error("crashed run left in registry")
	}
}

func TestLaunch_DetectionErrorSurfacedSynchronously(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 30"))

	// No manifest anywhere.
	tree := vfs.Tree{"notes.txt": {Content: "hello"}}
	_, err := s.Launch(tree)
	if err == nil {
		t.Fatal("expected a detection error")
	}
	if s.Registry().Len() != 0 {
		t.Error("failed detection left a registry entry")
	}
}

func TestLaunch_InstallFailureMarksFailed(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 30"))

	// README supplies an install command that cannot succeed; the run
	// command is never attempted.
	tree := vfs.Tree{
		"requirements.txt": {Content: "testfw\n"},
		"README.md":        {Content: "Setup: `pip install --no-such-flag-previewd-test`. Then `python main.py`."},
	}
	r, err := s.Launch(tree)
	if err == nil {
		t.Fatalf("install failure not surfaced; run %v", r)
	}
	if !strings.Contains(err.Error(), "install") {
		t.Errorf("error does not mention install: %v", err)
	}
	if s.Registry().Len() != 0 {
		t.Error("failed run left in registry")
	}
}

func TestLaunch_StreamsOutput(t *testing.T) {
	s := testSupervisor(t, shRules("echo out-line; echo err-line 1>&2; sleep 30"))

	tree := vfs.Tree{"requirements.txt": {Content: "testfw\n"}}
	r, err := s.Launch(tree)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Teardown().Cleanup(r.ID)

	waitForLog(t, r, "[stdout] out-line")
	waitForLog(t, r, "[stderr] err-line")
}

func TestNaturalExit_CleansUp(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 0.6"))

	tree := vfs.Tree{"requirements.txt": {Content: "testfw\n"}}
	r, err := s.Launch(tree)
	if err != nil {
		t.Fatal(err)
	}

	// Wait for the natural exit and the async teardown that follows.
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}

	cleaned := func() bool {
		if s.Registry().Len() != 0 || !r.Logs.Closed() {
			return false
		}
		_, err := os.Stat(r.Workdir)
		return os.IsNotExist(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !cleaned() {
		time.Sleep(20 * time.Millisecond)
	}
	if !cleaned() {
		t.Errorf("natural exit did not clean up: registry=%d closed=%v", s.Registry().Len(), r.Logs.Closed())
	}
}

func TestCleanup_MissingRunIsBenign(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 30"))
	if s.Teardown().Cleanup("never-existed") {
		t.Error("cleanup claimed to find an unknown run")
	}
}

func TestCleanupAll(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 30"))

	for i := 0; i < 3; i++ {
		tree := vfs.Tree{"requirements.txt": {Content: "testfw\n"}}
		if _, err := s.Launch(tree); err != nil {
			t.Fatal(err)
		}
	}

	if n := s.Teardown().CleanupAll(); n != 3 {
		t.Errorf("cleaned %d runs, want 3", n)
	}
	if s.Registry().Len() != 0 {
		t.Error("registry not empty after cleanup-all")
	}
}

func TestLaunch_DistinctPorts(t *testing.T) {
	s := testSupervisor(t, shRules("sleep 30"))

	tree := vfs.Tree{"requirements.txt": {Content: "testfw\n"}}
	a, err := s.Launch(tree)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Teardown().Cleanup(a.ID)

	b, err := s.Launch(tree)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Teardown().Cleanup(b.ID)

	if a.Port == b.Port {
		t.Errorf("two live runs share port %d", a.Port)
	}
	if a.ID == b.ID {
		t.Error("run ids collide")
	}
}
