package sampler

import "testing"

func TestArgmaxFirstMaxWins(t *testing.T) {
	x := []float32{1, 3, 3, 2}
	if got := argmax(x); got != 1 {
		t.Fatalf("argmax = %d, want 1", got)
	}
}

func TestTemperatureZeroIsDeterministic(t *testing.T) {
	logits := []float32{0.1, 0.9, 0.3}
	s1 := New(0, 0.9, 42)
	s2 := New(0, 0.9, 42)

	got1 := s1.Sample(append([]float32{}, logits...))
	got2 := s2.Sample(append([]float32{}, logits...))
	if got1 != got2 {
		t.Fatalf("temperature=0 not deterministic: %d vs %d", got1, got2)
	}
	if got1 != 1 {
		t.Fatalf("Sample = %d, want argmax index 1", got1)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	softmax(x)
	var sum float32
	for _, v := range x {
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("softmax sum = %f, want ~1.0", sum)
	}
}

func TestTopPOutOfRangeReducesToMultinomial(t *testing.T) {
	probs := []float32{0.2, 0.5, 0.3}
	s := New(1, 1.5, 7) // topp >= 1, falls through to sampleMult
	got := s.Sample(append([]float32{}, probs...))
	if got < 0 || got >= len(probs) {
		t.Fatalf("Sample returned out-of-range index %d", got)
	}
}

func TestSampleMultRespectsCDF(t *testing.T) {
	probs := []float32{0.2, 0.3, 0.5}
	if got := sampleMult(probs, 0.1); got != 0 {
		t.Fatalf("sampleMult(0.1) = %d, want 0", got)
	}
	if got := sampleMult(probs, 0.25); got != 1 {
		t.Fatalf("sampleMult(0.25) = %d, want 1", got)
	}
	if got := sampleMult(probs, 0.99); got != 2 {
		t.Fatalf("sampleMult(0.99) = %d, want 2", got)
	}
}

func TestXorshiftProducesVariedSequence(t *testing.T) {
	s := New(0.8, 0.9, 12345)
	a := s.nextFloat32()
	b := s.nextFloat32()
	if a == b {
		t.Fatal("consecutive PRNG draws should differ")
	}
	if a < 0 || a >= 1 {
		t.Fatalf("nextFloat32 = %f, want [0,1)", a)
	}
}
