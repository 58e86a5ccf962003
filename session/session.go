// Package session implements one generation session's lifecycle:
// construct, query, step, cancel, destroy, grounded on
// original_source/parameter/inc/txf.c's clamma_session_construct/query/
// destroy/issue and clamma_sessions_step_next, shaped after the
// mutex-guarded Sequence type of runner/llamarunner/sequence.go and
// types.go, with a synchronous issue callback in place of a channel.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/warmcat/clamma-go/checkpoint"
	"github.com/warmcat/clamma-go/sampler"
	"github.com/warmcat/clamma-go/tokenizer"
	"github.com/warmcat/clamma-go/transformer"
)

// ModelType selects which prompt template Query assembles, mirroring
// CLAMMA_MODEL_GEN / CLAMMA_MODEL_CHAT.
type ModelType int

const (
	ModelGen ModelType = iota
	ModelChat
)

// IssueFunc receives one decoded text fragment. Returning false asks the
// session to stop delivering further fragments (the client went away).
type IssueFunc func(piece string) bool

// Params configure one Query call, mirroring clamma_txf_info_t's
// session-scoped fields.
type Params struct {
	System      string
	Prompt      string
	Limit       int
	Temperature float32
	TopP        float32
	RNGSeed     uint64
	Issue       IssueFunc
}

// ErrNoInput is returned when Query's assembled prompt encodes to nothing.
var ErrNoInput = errors.New("session: empty encoded prompt")

// Session is one in-flight generation, stepped one token at a time by its
// owning runtime.
type Session struct {
	model     *checkpoint.Model
	vocab     *tokenizer.Vocab
	modelType ModelType
	engine    *transformer.Engine
	state     *transformer.State

	mu         sync.Mutex
	issue      IssueFunc
	clientGone bool

	tokens []uint32
	ct     int // number of prompt tokens
	limit  int
	pos    int
	token  uint32

	sampler *sampler.Sampler

	tokenCount int
	start      time.Time
}

// New constructs a Session against an already-loaded model. Admission
// is the caller's (package runtime's) responsibility: a runtime-wide
// semaphore, then the model's own max_sessions counter, matching
// clamma_session_construct's cap check happening before any allocation.
func New(model *checkpoint.Model, vocab *tokenizer.Vocab, engine *transformer.Engine, modelType ModelType) *Session {
	return &Session{
		model:     model,
		vocab:     vocab,
		modelType: modelType,
		engine:    engine,
		state:     transformer.NewState(model.Config),
	}
}

// assemblePrompt builds the system/user prompt string for the session's
// model type, matching clamma_session_query's two snprintf templates.
func assemblePrompt(modelType ModelType, system, prompt string) string {
	switch modelType {
	case ModelChat:
		if system != "" {
			return fmt.Sprintf("[INST] <<SYS>>\n%s\n<</SYS>>\n\n%s [/INST]\n", system, prompt)
		}
		return fmt.Sprintf("[INST] %s [/INST]\n", prompt)
	default:
		return fmt.Sprintf("%s\n%s\n", system, prompt)
	}
}

// Query assembles the prompt, tokenizes it, and seeds sampling parameters,
// per §4.H.
func (s *Session) Query(p Params) error {
	temperature := p.Temperature
	if temperature < 0 {
		temperature = 0
	}
	topP := p.TopP
	if topP < 0 || topP > 1 {
		topP = 0.9
	}
	seed := p.RNGSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s.sampler = sampler.New(temperature, topP, seed)
	s.issue = p.Issue
	if s.issue == nil {
		s.issue = func(piece string) bool { fmt.Print(piece); return true }
	}

	total := assemblePrompt(s.modelType, p.System, p.Prompt)
	tokens := s.vocab.Encode(total, true, false)
	if len(tokens) == 0 {
		return ErrNoInput
	}

	limit := p.Limit
	seqLen := int(s.model.Config.SeqLen)
	if limit <= 0 || limit > seqLen {
		limit = seqLen
	}

	s.tokens = tokens
	s.ct = len(tokens)
	s.limit = limit
	s.pos = 0
	s.token = tokens[0]
	s.start = time.Now()
	s.tokenCount = 0

	return nil
}

// Cancel marks the session's client as gone; the next Step call terminates
// it, matching clamma_sessions_query_cancel.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.clientGone = true
	s.mu.Unlock()
}

// done reports whether the session should terminate before running another
// forward step.
func (s *Session) done() bool {
	s.mu.Lock()
	gone := s.clientGone
	s.mu.Unlock()
	return gone || s.pos >= s.limit
}

// Step runs one forward pass and delivers at most one decoded text
// fragment, plus the synthetic EOS fragment when the session ends,
// returning false when the session is finished and should be destroyed.
func (s *Session) Step() bool {
	if s.done() {
		s.terminate()
		return false
	}

	isPrompt := s.pos+1 < s.ct

	if err := s.engine.Step(s.state, s.token, uint32(s.pos)); err != nil {
		s.terminate()
		return false
	}
	s.pos++

	var tnext uint32
	if isPrompt {
		tnext = s.tokens[s.pos]
	} else {
		tnext = uint32(s.sampler.Sample(s.state.Logits))
	}

	if s.pos >= s.limit {
		s.terminate()
		return false
	}

	if tnext == tokenizer.Unk || tnext == tokenizer.BOS {
		s.terminate()
		return false
	}

	s.tokenCount++

	if !isPrompt {
		piece := s.vocab.Decode(s.token, tnext)
		s.emit(piece)
	}

	if s.pos > 5 && tnext == tokenizer.EOS {
		s.terminate()
		return false
	}

	s.token = tnext
	return true
}

// emit applies the single-byte emission filter from §4.F before invoking
// the issue callback.
func (s *Session) emit(piece string) {
	if len(piece) == 1 && piece[0] != tokenizer.EOS {
		b := piece[0]
		if !(unicode.IsPrint(rune(b)) || unicode.IsSpace(rune(b))) {
			return
		}
	}
	if s.issue != nil {
		if !s.issue(piece) {
			s.mu.Lock()
			s.clientGone = true
			s.mu.Unlock()
		}
	}
}

// terminate emits a synthetic EOS fragment and reports throughput, per
// §4.H's destroy-time behavior.
func (s *Session) terminate() {
	if s.issue != nil {
		s.issue(string(rune(tokenizer.EOS)))
	}
	elapsed := time.Since(s.start)
	ms := elapsed.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	tokPerSec := float64(s.tokenCount*1000) / float64(ms)
	fmt.Printf("session: %d tokens, tok/s: %.3f\n", s.tokenCount, tokPerSec)
}

// Bytes reports the session's KV-cache memory footprint.
func (s *Session) Bytes() uint64 {
	return s.state.Cache().Bytes()
}
