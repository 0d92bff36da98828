package proc

import (
	"net"
	"os"
	"testing"
)

func TestPidsOnPort_ExcludesSelf(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	pids, err := PidsOnPort(port)
	if err != nil {
		t.Skipf("connection table not readable here: %v", err)
	}

	self := int32(os.Getpid())
	for _, pid := range pids {
		if pid == self {
			t.Error("own pid reported for own listener")
		}
	}
}

func TestPidsOnPort_UnboundPort(t *testing.T) {
	// Grab a free port and release it so nothing is bound there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	pids, err := PidsOnPort(port)
	if err != nil {
		t.Skipf("connection table not readable here: %v", err)
	}
	if len(pids) != 0 {
		t.Errorf("expected no pids on unbound port %d, got %v", port, pids)
	}
}

func TestKillByPort_NothingToKill(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	killed, err := KillByPort(port)
	if err != nil {
		t.Skipf("connection table not readable here: %v", err)
	}
	if len(killed) != 0 {
		t.Errorf("killed %v on a port with no listeners", killed)
	}
}
