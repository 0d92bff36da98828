// Package ports hands out preview ports for sandboxed runs.
//
// The allocator prefers fresh ports (a forward-moving counter) so that a
// just-killed run's port is not immediately handed to a new run while the OS
// still has sockets in TIME_WAIT. Released ports are reused only once the
// range is exhausted, and every candidate is probed with a real listener
// before being returned.
package ports

import (
	"fmt"
	"net"
	"sync"
)

// Allocator issues preview ports from a bounded range.
type Allocator struct {
	mu    sync.Mutex
	base  int
	max   int
	next  int
	inUse map[int]bool
	freed []int
}

// NewAllocator creates an Allocator over [base, max].
func NewAllocator(base, max int) *Allocator {
	return &Allocator{
		base:  base,
		max:   max,
		next:  base,
		inUse: make(map[int]bool),
	}
}

// Acquire returns a port that is not held by any live run and that the OS
// confirmed bindable at probe time. Concurrent calls get distinct ports.
func (a *Allocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for a.next <= a.max {
		p := a.next
		a.next++
		if a.inUse[p] {
			continue
		}
		if probe(p) {
			a.inUse[p] = true
			return p, nil
		}
	}

	// Range exhausted: fall back to ports released by finished runs.
	for i, p := range a.freed {
		if probe(p) {
			a.freed = append(a.freed[:i], a.freed[i+1:]...)
			a.inUse[p] = true
			return p, nil
		}
	}

	return 0, fmt.Errorf("ports: range %d-%d exhausted", a.base, a.max)
}

// Release returns a port to the allocator. Releasing a port that was never
// acquired is a no-op.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.inUse[port] {
		return
	}
	delete(a.inUse, port)
	a.freed = append(a.freed, port)
}

// InUse reports whether the allocator currently holds the port.
func (a *Allocator) InUse(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse[port]
}

// probe asks the OS whether the port is bindable on the loopback interface.
func probe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
