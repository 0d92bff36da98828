package run

import "sync"

// Registry is the process-wide table of live runs. All access goes through
// one RWMutex; nothing else may hold run bookkeeping.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Add inserts a run.
func (g *Registry) Add(r *Run) {
	g.mu.Lock()
	g.runs[r.ID] = r
	g.mu.Unlock()
}

// Get returns a run by id.
func (g *Registry) Get(id string) (*Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runs[id]
	return r, ok
}

// Remove deletes and returns a run. The check-and-delete is atomic, so
// exactly one of several concurrent cleanups wins.
func (g *Registry) Remove(id string) (*Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	if ok {
		delete(g.runs, id)
	}
	return r, ok
}

// List returns a snapshot of all live runs.
func (g *Registry) List() []*Run {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Run, 0, len(g.runs))
	for _, r := range g.runs {
		out = append(out, r)
	}
	return out
}

// Len returns the number of live runs.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}
