// Package kernel - Single-threaded float and quantized matrix-vector
// kernels over a sub-range of output rows.
//
// Grounded on original_source/parameter/inc/session.c's _session_matmul and
// _session_matmul_qt. These are the units the worker pool (package pool)
// dispatches per job; kernel itself is single-threaded and stateless.
package kernel

import "github.com/warmcat/clamma-go/weights"

// Float computes xout[i] = sum_j w[i*n+j] * x[j] for i in [i0, i1), where w
// is a row-major [d, n] matrix and x has length n. xout must have length d;
// only indices [i0, i1) are written.
//
// This is a plain float32 accumulation loop rather than a gonum/floats
// call: gonum's floats package operates on []float64 only, and converting
// to float64 and back would change the accumulation precision the forward
// engine's numeric properties (spec testable properties, §8) are stated
// against. gonum/floats is used instead in this module's tests, where
// float64 tolerance comparisons are exactly what's wanted.
func Float(xout []float32, x []float32, w []float32, n int, i0, i1 int) {
	for i := i0; i < i1; i++ {
		row := w[i*n : i*n+n]
		var sum float32
		for j, xv := range x {
			sum += row[j] * xv
		}
		xout[i] = sum
	}
}

// Int8 computes the same product as Float, but x and w are quantized in
// groups of groupSize. For each output row and each group, the int8
// products accumulate as int32 (no saturation risk: the worst case is
// groupSize * 127^2, far inside int32 range), then the group sum is scaled
// by s_w[group] * s_x[group] and added into the row's float accumulator.
func Int8(xout []float32, xq weights.Quantized, wq weights.Quantized, n int, groupSize uint32, i0, i1 int) {
	g := int(groupSize)
	groupsPerRow := n / g

	for i := i0; i < i1; i++ {
		var acc float32
		rowOff := i * n
		sRowOff := i * groupsPerRow

		for group := 0; group < groupsPerRow; group++ {
			start := rowOff + group*g
			var isum int32
			wrow := wq.Q[start : start+g]
			xrow := xq.Q[group*g : group*g+g]
			for k := 0; k < g; k++ {
				isum += int32(wrow[k]) * int32(xrow[k])
			}
			acc += float32(isum) * wq.S[sRowOff+group] * xq.S[group]
		}

		xout[i] = acc
	}
}
