// Package proc kills OS processes by the port they are bound to.
//
// The supervisor launches run commands through a shell, so the process that
// actually binds the preview port can be a grandchild the recorded handle
// does not reach. Scanning the system connection table by port is the
// fallback that catches those trees.
package proc

import (
	"fmt"
	"log"
	"os"

	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// PidsOnPort returns the PIDs of all processes with a socket bound to the
// given local port. The previewd process itself is excluded.
func PidsOnPort(port int) ([]int32, error) {
	conns, err := gopsnet.Connections("inet")
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}

	self := int32(os.Getpid())
	seen := make(map[int32]bool)
	var pids []int32
	for _, c := range conns {
		if c.Laddr.Port != uint32(port) || c.Pid == 0 || c.Pid == self {
			continue
		}
		if seen[c.Pid] {
			continue
		}
		seen[c.Pid] = true
		pids = append(pids, c.Pid)
	}
	return pids, nil
}

// KillByPort force-kills every process bound to the port and returns the
// PIDs that were actually killed. Individual kill failures are logged and
// skipped; the sweep never fails part-way.
func KillByPort(port int) ([]int32, error) {
	pids, err := PidsOnPort(port)
	if err != nil {
		return nil, err
	}

	var killed []int32
	for _, pid := range pids {
		p, err := process.NewProcess(pid)
		if err != nil {
			log.Printf("kill-port %d: pid %d already gone: %v", port, pid, err)
			continue
		}
		if err := p.Kill(); err != nil {
			log.Printf("kill-port %d: killing pid %d: %v", port, pid, err)
			continue
		}
		log.Printf("kill-port %d: killed pid %d", port, pid)
		killed = append(killed, pid)
	}
	return killed, nil
}
