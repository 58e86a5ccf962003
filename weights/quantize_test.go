package weights

import "testing"

func TestQuantizeZeroGroup(t *testing.T) {
	x := make([]float32, 8)
	qt := Quantize(x, 8)
	if qt.S[0] != 0 {
		t.Fatalf("expected zero scale for all-zero group, got %v", qt.S[0])
	}
	for _, v := range qt.Q {
		if v != 0 {
			t.Fatalf("expected zero quantized values, got %v", v)
		}
	}
}

func TestQuantizeDequantizeBound(t *testing.T) {
	x := []float32{1, -2, 3, -4, 5, -6, 7, -8}
	const group = 8

	qt := Quantize(x, group)
	recon := Dequantize(qt, group)

	var wmax float32
	for _, v := range x {
		if v < 0 {
			v = -v
		}
		if v > wmax {
			wmax = v
		}
	}
	bound := wmax/127/2 + 1e-4

	for i := range x {
		diff := recon[i] - x[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > bound {
			t.Errorf("index %d: |recon-orig|=%v exceeds bound %v", i, diff, bound)
		}
	}
}

func TestQuantizeIdempotentOnQuantizedPair(t *testing.T) {
	x := []float32{10, -20, 30, -40, 127, -128, 64, -64}
	const group = 8

	qt := Quantize(x, group)
	recon := Dequantize(qt, group)
	qt2 := Quantize(recon, group)

	for i := range qt.Q {
		if qt.Q[i] != qt2.Q[i] {
			t.Errorf("index %d: q=%v q2=%v not idempotent", i, qt.Q[i], qt2.Q[i])
		}
	}
	for i := range qt.S {
		if qt.S[i] != qt2.S[i] {
			t.Errorf("group %d: s=%v s2=%v not idempotent", i, qt.S[i], qt2.S[i])
		}
	}
}
