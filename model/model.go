// Package model is the name-keyed registry of loaded checkpoints, the
// registry half of §4.I. Grounded on
// _examples/7blacky7-ollama-reverse/model/model.go's Register/New/
// modelForArch pattern, re-keyed from architecture name to model name
// since spec.md's inference engine supports exactly one architecture.
package model

import (
	"fmt"
	"sync"

	"github.com/warmcat/clamma-go/checkpoint"
	"github.com/warmcat/clamma-go/session"
	"github.com/warmcat/clamma-go/tokenizer"
	"github.com/warmcat/clamma-go/weights"
)

// Model is one constructed, named entry in the registry: a loaded
// checkpoint, its vocabulary, its prompt-template type, and its own
// session admission count, kept by AcquireSession/ReleaseSession.
type Model struct {
	Name      string
	Checkpoint *checkpoint.Model
	Vocab     *tokenizer.Vocab
	ModelType session.ModelType

	MaxSessions int

	mu           sync.Mutex
	sessionCount int
}

// Registry holds every currently-constructed Model, looked up by name,
// mirroring the original's singly-linked list of txf_t walked by name.
type Registry struct {
	mu     sync.Mutex
	models map[string]*Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds m under its Name, failing if the name is already taken,
// matching the original's fprintf-and-bail on duplicate registration.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("model: %q already registered", m.Name)
	}
	r.models[m.Name] = m
	return nil
}

// Lookup finds a registered model by name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[name]
	return m, ok
}

// Destroy removes a model from the registry and releases its checkpoint's
// backing store, matching clamma_txf_destroy's teardown order (vocab then
// weights, here expressed as registry-removal then accessor Close).
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	m, ok := r.models[name]
	if ok {
		delete(r.models, name)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("model: %q not registered", name)
	}
	return m.Checkpoint.Close()
}

// AcquireSession reserves one of m's session slots, matching
// clamma_session_construct's "reached max sessions" check. Returns false
// when the model's max_sessions cap (0 means unlimited) is already
// reached.
func (m *Model) AcquireSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MaxSessions > 0 && m.sessionCount >= m.MaxSessions {
		return false
	}
	m.sessionCount++
	return true
}

// ReleaseSession frees one of m's session slots.
func (m *Model) ReleaseSession() {
	m.mu.Lock()
	m.sessionCount--
	m.mu.Unlock()
}

// Config exposes the checkpoint's configuration for callers sizing
// per-session scratch buffers ahead of a session.New call.
func (m *Model) Config() weights.Config {
	return m.Checkpoint.Config
}
