package importer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Run pairs a run id with its importer and, once finished, its result.
type Run struct {
	ID       string
	Platform string

	mu       sync.Mutex
	importer *Importer
	result   *Result
}

// Progress returns the run's live progress, or the final progress once
// the run has finished.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result != nil {
		return r.result.Progress
	}
	return r.importer.Snapshot()
}

// Stats returns the run's live statistics.
func (r *Run) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result != nil {
		return r.result.Stats
	}
	return r.importer.StatsSnapshot()
}

// Result returns the final result, or nil while the run is in flight.
func (r *Run) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Cancel requests cooperative cancellation of the run.
func (r *Run) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importer.Cancel()
}

// Importer exposes the run's importer for the goroutine driving it.
func (r *Run) Importer() *Importer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.importer
}

// Finish records the final result.
func (r *Run) Finish(result *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
}

// Manager tracks live import runs by id so the API can report progress
// and deliver cancellation. Runs never share state with each other; the
// manager is only a directory.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewManager creates an empty run directory.
func NewManager() *Manager {
	return &Manager{runs: make(map[string]*Run)}
}

// Register creates a run entry for the given importer and returns it.
func (m *Manager) Register(platform string, imp *Importer) *Run {
	run := &Run{
		ID:       uuid.NewString(),
		Platform: platform,
		importer: imp,
	}
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	return run
}

// Restore re-registers a run under its original id, for queued work
// that outlived the process which enqueued it.
func (m *Manager) Restore(id, platform string, imp *Importer) *Run {
	run := &Run{
		ID:       id,
		Platform: platform,
		importer: imp,
	}
	m.mu.Lock()
	m.runs[id] = run
	m.mu.Unlock()
	return run
}

// Get returns the run with the given id.
func (m *Manager) Get(id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("unknown import run %q", id)
	}
	return run, nil
}

// Remove drops a finished run from the directory.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.runs, id)
	m.mu.Unlock()
}
