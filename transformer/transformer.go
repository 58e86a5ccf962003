// Package transformer runs one decoder step of a Llama2-family model:
// RMSNorm, QKV projection, RoPE, multi-head attention over a KV cache,
// output projection, and a SwiGLU feed-forward block, finishing with a
// final norm and classifier projection into logits.
//
// Grounded on original_source/parameter/inc/session.c's
// clamma_session_forward, session_rmsnorm, and session_softmax. Matmuls
// are dispatched through the pool package, and every matmul waits for all
// of its row bands before returning: q, k, v, the output projection, w1,
// w3, w2 and the classifier are each their own sync point, so no two
// matmuls of one session are ever in flight together.
package transformer

import (
	"fmt"
	"math"

	"github.com/warmcat/clamma-go/checkpoint"
	"github.com/warmcat/clamma-go/kernel"
	"github.com/warmcat/clamma-go/kvcache"
	"github.com/warmcat/clamma-go/pool"
	"github.com/warmcat/clamma-go/weights"
)

// State holds one session's scratch buffers, reused across every Step
// call. Sizes match private.h's txf_session_state_t / txf_session_t.s.
type State struct {
	X   []float32 // current activation, dim
	XB  []float32 // attention scratch, dim
	XB2 []float32 // attention output scratch, dim
	HB  []float32 // ffn hidden scratch, hidden_dim
	HB2 []float32 // ffn hidden scratch, hidden_dim
	Q   []float32 // query projection, dim
	Att []float32 // attention scores, n_heads * seq_len
	Logits []float32 // vocab_size

	cache *kvcache.Cache
}

// NewState allocates a zeroed scratch state and KV cache for one session.
func NewState(cfg weights.Config) *State {
	return &State{
		X:      make([]float32, cfg.Dim),
		XB:     make([]float32, cfg.Dim),
		XB2:    make([]float32, cfg.Dim),
		HB:     make([]float32, cfg.HiddenDim),
		HB2:    make([]float32, cfg.HiddenDim),
		Q:      make([]float32, cfg.Dim),
		Att:    make([]float32, cfg.NHeads*cfg.SeqLen),
		Logits: make([]float32, cfg.VocabSize),
		cache:  kvcache.New(cfg.NLayers, cfg.SeqLen, cfg.KVDim()),
	}
}

// Cache exposes the session's KV cache, e.g. for byte-size reporting.
func (s *State) Cache() *kvcache.Cache {
	return s.cache
}

// Engine runs forward steps for one loaded model against the process-wide
// worker pool.
type Engine struct {
	Model *checkpoint.Model
	Pool  *pool.Pool
}

// New builds an Engine over an already-loaded model and pool.
func New(model *checkpoint.Model, p *pool.Pool) *Engine {
	return &Engine{Model: model, Pool: p}
}

// rmsnorm computes o[i] = w[i] * x[i] / sqrt(mean(x^2) + 1e-5), matching
// session_rmsnorm.
func rmsnorm(o, x, w []float32) {
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	ss /= float32(len(x))
	ss += 1e-5
	ss = 1.0 / float32(math.Sqrt(float64(ss)))

	for i, v := range x {
		o[i] = w[i] * (ss * v)
	}
}

// softmax normalizes x in place, subtracting the max for numerical
// stability, matching session_softmax.
func softmax(x []float32) {
	maxVal := x[0]
	for _, v := range x[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range x {
		e := float32(math.Exp(float64(v - maxVal)))
		x[i] = e
		sum += e
	}
	for i := range x {
		x[i] /= sum
	}
}

// matmul dispatches xout = w*x across the pool, branching on the model's
// version to pick the float or int8 kernel, and blocks until every row
// band has completed. w must have d output rows and n input columns.
func (e *Engine) matmul(xout, x []float32, w checkpoint.Matrix, n int, groupSize uint32, d int) {
	if e.Model.Version() == weights.FloatV1 {
		e.Pool.Dispatch(d, func(i0, i1 int) {
			kernel.Float(xout, x, w.F, n, i0, i1)
		}).Wait()
		return
	}

	xq := weights.Quantize(x, groupSize)
	e.Pool.Dispatch(d, func(i0, i1 int) {
		kernel.Int8(xout, xq, w.Q, n, groupSize, i0, i1)
	}).Wait()
}

// Step runs one decoder pass for token at position pos, writing logits
// into s.Logits. Failure of any weight fetch is fatal for the step, per
// spec.md §4.E's "the engine returns a sentinel and the caller ends the
// session".
func (e *Engine) Step(s *State, token uint32, pos uint32) error {
	cfg := e.Model.Config
	dim := int(cfg.Dim)
	kvDim := int(cfg.KVDim())
	headSize := int(cfg.HeadSize())
	kvMul := int(cfg.KVMul())
	g := cfg.GroupSize

	copy(s.X, e.Model.TokenRow(token))

	k := make([]float32, kvDim)
	v := make([]float32, kvDim)

	for l := 0; l < int(cfg.NLayers); l++ {
		rmsAtt, err := e.Model.RMSWeight(checkpoint.RMSAtt, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d rms_att: %w", l, err)
		}
		rmsnorm(s.XB, s.X, rmsAtt)

		wq, err := e.Model.Weight(checkpoint.WQ, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d wq: %w", l, err)
		}
		wk, err := e.Model.Weight(checkpoint.WK, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d wk: %w", l, err)
		}
		wv, err := e.Model.Weight(checkpoint.WV, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d wv: %w", l, err)
		}

		e.matmul(s.Q, s.XB, wq, dim, g, dim)
		e.matmul(k, s.XB, wk, dim, g, kvDim)
		e.matmul(v, s.XB, wv, dim, g, kvDim)

		ropeRotate(s.Q, k, pos, int(dim), kvDim, headSize)

		if err := s.cache.Put(l, pos, k, v); err != nil {
			return fmt.Errorf("transformer: layer %d kv write: %w", l, err)
		}

		if err := e.attention(s, l, int(pos), int(cfg.NHeads), headSize, kvMul); err != nil {
			return fmt.Errorf("transformer: layer %d attention: %w", l, err)
		}

		wo, err := e.Model.Weight(checkpoint.WO, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d wo: %w", l, err)
		}
		e.matmul(s.XB2, s.XB, wo, dim, g, dim)

		for i := range s.X {
			s.X[i] += s.XB2[i]
		}

		rmsFFN, err := e.Model.RMSWeight(checkpoint.RMSFFN, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d rms_ffn: %w", l, err)
		}
		rmsnorm(s.XB, s.X, rmsFFN)

		w1, err := e.Model.Weight(checkpoint.W1, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d w1: %w", l, err)
		}
		w3, err := e.Model.Weight(checkpoint.W3, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d w3: %w", l, err)
		}
		e.matmul(s.HB, s.XB, w1, dim, g, int(cfg.HiddenDim))
		e.matmul(s.HB2, s.XB, w3, dim, g, int(cfg.HiddenDim))

		for i := range s.HB {
			sig := 1.0 / (1.0 + float32(math.Exp(float64(-s.HB[i]))))
			s.HB[i] = s.HB[i] * sig * s.HB2[i]
		}

		w2, err := e.Model.Weight(checkpoint.W2, l)
		if err != nil {
			return fmt.Errorf("transformer: layer %d w2: %w", l, err)
		}
		e.matmul(s.XB, s.HB, w2, int(cfg.HiddenDim), g, dim)

		for i := range s.X {
			s.X[i] += s.XB[i]
		}
	}

	rmsFinal, err := e.Model.RMSFinal()
	if err != nil {
		return fmt.Errorf("transformer: rms_final: %w", err)
	}
	rmsnorm(s.X, s.X, rmsFinal)

	wcls, err := e.Model.Classifier()
	if err != nil {
		return fmt.Errorf("transformer: classifier: %w", err)
	}
	e.matmul(s.Logits, s.X, wcls, dim, g, int(cfg.VocabSize))

	return nil
}

// ropeRotate applies RoPE to q in place, and to k while i < kvDim,
// matching §4.E step d exactly.
func ropeRotate(q, k []float32, pos uint32, dim, kvDim, headSize int) {
	for i := 0; i < dim; i += 2 {
		headDim := i % headSize
		freq := float32(1.0 / math.Pow(10000.0, float64(headDim)/float64(headSize)))
		val := float32(pos) * freq
		fcr := float32(math.Cos(float64(val)))
		fci := float32(math.Sin(float64(val)))

		q0, q1 := q[i], q[i+1]
		q[i] = q0*fcr - q1*fci
		q[i+1] = q0*fci + q1*fcr

		if i < kvDim {
			k0, k1 := k[i], k[i+1]
			k[i] = k0*fcr - k1*fci
			k[i+1] = k0*fci + k1*fcr
		}
	}
}

// attention computes multi-head attention for layer l at the current
// position, writing the weighted value sum into s.XB, per §4.E step f.
func (e *Engine) attention(s *State, l int, pos int, nHeads, headSize, kvMul int) error {
	for h := 0; h < nHeads; h++ {
		q := s.Q[h*headSize : h*headSize+headSize]
		att := s.Att[h*len(s.Att)/nHeads : h*len(s.Att)/nHeads+len(s.Att)/nHeads]

		for n := 0; n <= pos; n++ {
			kRow, err := s.cache.Key(l, uint32(n))
			if err != nil {
				return err
			}
			kHead := kRow[(h/kvMul)*headSize : (h/kvMul)*headSize+headSize]

			var score float32
			for i := range q {
				score += q[i] * kHead[i]
			}
			att[n] = score / float32(math.Sqrt(float64(headSize)))
		}

		softmax(att[:pos+1])

		xb := s.XB[h*headSize : h*headSize+headSize]
		for i := range xb {
			xb[i] = 0
		}
		for n := 0; n <= pos; n++ {
			vRow, err := s.cache.Value(l, uint32(n))
			if err != nil {
				return err
			}
			vHead := vRow[(h/kvMul)*headSize : (h/kvMul)*headSize+headSize]
			a := att[n]
			for i := range xb {
				xb[i] += a * vHead[i]
			}
		}
	}
	return nil
}
