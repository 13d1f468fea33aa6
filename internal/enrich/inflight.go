package enrich

import "sync"

// Inflight guarantees at most one concurrent enrichment per entity id.
// Callers that lose the race can await the winner's completion through the
// channel Running exposes.
type Inflight struct {
	mu   sync.Mutex
	jobs map[string]chan struct{}
}

// NewInflight creates an empty registry.
func NewInflight() *Inflight {
	return &Inflight{jobs: make(map[string]chan struct{})}
}

// Begin registers a job for id. The second return is false when a job is
// already running, in which case no new work may start. On success the
// caller must invoke the returned function exactly once when the job
// finishes, regardless of outcome.
func (r *Inflight) Begin(id string) (func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.jobs[id]; running {
		return nil, false
	}
	done := make(chan struct{})
	r.jobs[id] = done
	return func() {
		r.mu.Lock()
		delete(r.jobs, id)
		r.mu.Unlock()
		close(done)
	}, true
}

// Running returns the done channel of the job currently registered for id,
// if any. The channel closes when the job completes.
func (r *Inflight) Running(id string) (<-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	done, running := r.jobs[id]
	return done, running
}
