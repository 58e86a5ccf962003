// Package runtime is the process-wide value (§9's design note) owning
// the worker pool and the model/session registries, plus the round-robin
// step driver of §4.I.
//
// Grounded on original_source/parameter/inc/txf.c's
// clamma_sessions_step_next for the one-token-per-call, rotate-after-step
// contract, and on
// _examples/7blacky7-ollama-reverse/runner/llamarunner/batch.go's
// `seqIdx = (seqIdx + 1) % len(seqs)` loop for the idiomatic Go shape of
// that rotation — expressed here as moving index 0 to the back of a slice
// rather than linked-list pointer surgery, which achieves the same
// every-session-steps-once-per-full-pass fairness contract with less
// code, and is how runner/llamarunner itself favors slice indexing over
// manual list links.
package runtime

import (
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/warmcat/clamma-go/model"
	"github.com/warmcat/clamma-go/pool"
	"github.com/warmcat/clamma-go/session"
	"github.com/warmcat/clamma-go/transformer"
)

// Runtime bundles the process-wide worker pool with the model registry
// and the live session list the step driver rotates through.
type Runtime struct {
	Pool     *pool.Pool
	Models   *model.Registry

	mu       sync.Mutex
	sessions []*entry
	admit    *semaphore.Weighted
}

type entry struct {
	sess  *session.Session
	model *model.Model
}

// New builds a Runtime around a worker pool sized for numThreads, with a
// global session admission semaphore sized maxConcurrentSessions (0 means
// unlimited, backed by a very large weight since semaphore.Weighted has
// no "unlimited" sentinel).
func New(numThreads, ringCapacity, maxConcurrentSessions int) *Runtime {
	if maxConcurrentSessions <= 0 {
		maxConcurrentSessions = 1 << 30
	}
	return &Runtime{
		Pool:   pool.New(numThreads, ringCapacity),
		Models: model.NewRegistry(),
		admit:  semaphore.NewWeighted(int64(maxConcurrentSessions)),
	}
}

// NewSession constructs and registers a session against a named,
// registered model, gating admission first on the runtime-wide semaphore
// and then on the model's own max_sessions cap, matching
// clamma_session_construct's ordering (global limits checked before any
// per-session allocation happens).
func (r *Runtime) NewSession(modelName string, params session.Params) (*session.Session, error) {
	m, ok := r.Models.Lookup(modelName)
	if !ok {
		return nil, fmt.Errorf("runtime: model %q not registered", modelName)
	}

	if !r.admit.TryAcquire(1) {
		return nil, fmt.Errorf("runtime: session admission limit reached")
	}
	if !m.AcquireSession() {
		r.admit.Release(1)
		return nil, fmt.Errorf("runtime: model %q reached max sessions", modelName)
	}

	engine := transformer.New(m.Checkpoint, r.Pool)
	sess := session.New(m.Checkpoint, m.Vocab, engine, m.ModelType)

	if err := sess.Query(params); err != nil {
		m.ReleaseSession()
		r.admit.Release(1)
		return nil, err
	}

	r.mu.Lock()
	r.sessions = append(r.sessions, &entry{sess: sess, model: m})
	r.mu.Unlock()

	return sess, nil
}

// StepNext runs one forward step for the session at the head of the
// rotation, then moves it to the back, matching
// clamma_sessions_step_next's "move the just-stepped session out of the
// head position" rotation. It returns false when there are no sessions
// left to step.
func (r *Runtime) StepNext() bool {
	r.mu.Lock()
	if len(r.sessions) == 0 {
		r.mu.Unlock()
		return false
	}
	head := r.sessions[0]
	r.mu.Unlock()

	alive := head.sess.Step()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) == 0 || r.sessions[0] != head {
		// another goroutine already rotated or removed this entry.
		return len(r.sessions) > 0
	}

	if !alive {
		r.sessions = r.sessions[1:]
		head.model.ReleaseSession()
		r.admit.Release(1)
		return len(r.sessions) > 0
	}

	if len(r.sessions) > 1 {
		r.sessions = append(r.sessions[1:], head)
	}
	return true
}

// Cancel marks a live session as client-gone; its next StepNext call will
// terminate and remove it.
func (r *Runtime) Cancel(sess *session.Session) {
	sess.Cancel()
}

// SessionCount reports how many sessions are currently rotating.
func (r *Runtime) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close releases the runtime's worker pool.
func (r *Runtime) Close() {
	r.Pool.Release()
}
