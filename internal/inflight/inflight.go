// Package inflight tracks in-flight requests per logical operation so that
// a completion older than one already applied can be ignored.
package inflight

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request identifies one started operation.
type Request struct {
	ID      string
	Key     string
	Seq     uint64
	Started time.Time
}

// Tracker hands out Requests and decides which completions are current.
// The zero value is not usable; call New.
type Tracker struct {
	mu      sync.Mutex
	latest  map[string]uint64             // newest started seq
	applied map[string]uint64             // newest accepted seq, or the Invalidate floor
	pending map[string]map[string]Request // key -> id -> request
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		latest:  make(map[string]uint64),
		applied: make(map[string]uint64),
		pending: make(map[string]map[string]Request),
	}
}

// Begin registers a new request for key.
func (t *Tracker) Begin(key string) Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[key]++
	req := Request{
		ID:      uuid.NewString(),
		Key:     key,
		Seq:     t.latest[key],
		Started: time.Now(),
	}
	if t.pending[key] == nil {
		t.pending[key] = make(map[string]Request)
	}
	t.pending[key][req.ID] = req
	return req
}

// Finish marks req complete and reports whether its result should be
// applied. A result is stale when a request started after it has already
// been applied, or when the key was invalidated after it started. An
// accepted request makes every older one stale.
func (t *Tracker) Finish(req Request) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.release(req)
	if req.Seq <= t.applied[req.Key] {
		return false
	}
	t.applied[req.Key] = req.Seq
	return true
}

// Abandon marks req complete without applying it, e.g. after a failed
// fetch. Older requests stay eligible.
func (t *Tracker) Abandon(req Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.release(req)
}

func (t *Tracker) release(req Request) {
	if m := t.pending[req.Key]; m != nil {
		delete(m, req.ID)
		if len(m) == 0 {
			delete(t.pending, req.Key)
		}
	}
}

// Pending returns the number of unfinished requests for key.
func (t *Tracker) Pending(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending[key])
}

// Invalidate makes every request for key started so far stale. Used when
// state is reset (logout).
func (t *Tracker) Invalidate(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied[key] = t.latest[key]
}
