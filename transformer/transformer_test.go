package transformer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/warmcat/clamma-go/checkpoint"
	"github.com/warmcat/clamma-go/pool"
	"github.com/warmcat/clamma-go/weights"
)

// smallCheckpoint builds a minimal FLOAT_V1 image with small, varied
// values so RMSNorm/softmax/attention stay numerically well-behaved
// across a handful of forward steps.
func smallCheckpoint(dim, hiddenDim, nLayers, nHeads, nKVHeads, vocabSize, seqLen uint32) []byte {
	headSize := dim / nHeads

	header := make([]byte, 28)
	fields := []uint32{dim, hiddenDim, nLayers, nHeads, nKVHeads, vocabSize, seqLen}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(header[i*4:i*4+4], f)
	}

	counts := []uint32{
		vocabSize * dim,
		nLayers * dim,
		nLayers * dim * (nHeads * headSize),
		nLayers * dim * (nKVHeads * headSize),
		nLayers * dim * (nKVHeads * headSize),
		nLayers * (nHeads * headSize) * dim,
		nLayers * dim,
		nLayers * dim * hiddenDim,
		nLayers * hiddenDim * dim,
		nLayers * dim * hiddenDim,
		dim,
		seqLen * headSize / 2,
		seqLen * headSize / 2,
	}

	var body []byte
	var idx float32
	for _, n := range counts {
		for i := uint32(0); i < n; i++ {
			v := float32(math.Mod(float64(idx), 5)) * 0.05
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(v))
			body = append(body, b...)
			idx++
		}
	}

	return append(header, body...)
}

func newTestEngine(t *testing.T, nHeads, nKVHeads uint32) (*Engine, *State) {
	t.Helper()

	img := smallCheckpoint(4, 8, 2, nHeads, nKVHeads, 6, 8)
	ck, err := checkpoint.Load(checkpoint.LoadInfo{
		APIVersion: checkpoint.APIVersion,
		AccessMode: weights.AbsoluteAddress,
		ModelBase:  img,
	})
	if err != nil {
		t.Fatalf("checkpoint.Load: %v", err)
	}
	t.Cleanup(func() { ck.Close() })

	p := pool.New(2, pool.Capacity(2, 1))
	t.Cleanup(p.Release)

	return New(ck, p), NewState(ck.Config)
}

func TestRmsnormNormalizesByRootMeanSquare(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	w := []float32{1, 1, 1, 1}
	o := make([]float32, 4)
	rmsnorm(o, x, w)

	var sumSq float32
	for _, v := range o {
		sumSq += v * v
	}
	// o[i] = x[i] / rms(x), so sum(o^2) should equal len(x) exactly
	// (up to the 1e-5 stabilizer).
	if sumSq < float32(len(x))-0.01 || sumSq > float32(len(x))+0.01 {
		t.Fatalf("sum of squares = %v, want approximately %d", sumSq, len(x))
	}
}

func TestSoftmaxSumsToOneAndPreservesOrder(t *testing.T) {
	x := []float32{1, 3, 2}
	softmax(x)

	var sum float32
	for _, v := range x {
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("softmax sum = %v, want 1", sum)
	}
	if !(x[1] > x[2] && x[2] > x[0]) {
		t.Fatalf("softmax did not preserve relative order: %v", x)
	}
}

func TestRopeRotatePreservesVectorNormPerPair(t *testing.T) {
	q := []float32{1, 0, 0, 1}
	k := []float32{1, 0, 0, 1}
	ropeRotate(q, k, 3, 4, 4, 2)

	for i := 0; i < 4; i += 2 {
		before := float64(1) // both test pairs start as unit vectors
		after := math.Sqrt(float64(q[i])*float64(q[i]) + float64(q[i+1])*float64(q[i+1]))
		if after < before-1e-4 || after > before+1e-4 {
			t.Fatalf("pair %d: norm changed from %v to %v", i, before, after)
		}
	}
}

func TestRopeLeavesKUnrotatedPastKVDim(t *testing.T) {
	k := []float32{5, 6}
	kCopy := append([]float32{}, k...)
	q := []float32{1, 0}
	ropeRotate(q, k, 7, 2, 0, 2)

	if k[0] != kCopy[0] || k[1] != kCopy[1] {
		t.Fatalf("k rotated despite i >= kvDim: got %v, want unchanged %v", k, kCopy)
	}
}

func TestStepProducesFiniteLogitsForMultiQueryAttention(t *testing.T) {
	e, s := newTestEngine(t, 4, 2) // n_heads=4, n_kv_heads=2: kv_mul=2

	for pos := uint32(0); pos < 3; pos++ {
		if err := e.Step(s, pos%4, pos); err != nil {
			t.Fatalf("Step(pos=%d): %v", pos, err)
		}
	}

	if len(s.Logits) != int(e.Model.Config.VocabSize) {
		t.Fatalf("logits length = %d, want %d", len(s.Logits), e.Model.Config.VocabSize)
	}
	for i, v := range s.Logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("logits[%d] = %v, want finite", i, v)
		}
	}
}

func TestStepWithOrdinaryMultiHeadAttention(t *testing.T) {
	e, s := newTestEngine(t, 4, 4) // n_heads == n_kv_heads: kv_mul=1

	if err := e.Step(s, 0, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := e.Step(s, 1, 1); err != nil {
		t.Fatalf("Step: %v", err)
	}

	for i, v := range s.Logits {
		if math.IsNaN(float64(v)) {
			t.Fatalf("logits[%d] is NaN", i)
		}
	}
}
