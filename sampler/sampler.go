// Package sampler implements temperature/top-p sampling over logits,
// grounded on original_source/parameter/inc/sampler.c's
// clamma_sampler_sample and its xorshift64* PRNG.
//
// The PRNG and the argmax/multinomial/top-p thresholds are bit-exact
// algorithms spec.md §8 makes determinism assertions against, so this is
// hand-written rather than routed through math/rand or a pack RNG library:
// any substitute would break reproducibility at a fixed seed.
package sampler

import (
	"math"
	"sort"
)

// Sampler holds sampling parameters and PRNG state for one session.
type Sampler struct {
	Temperature float32
	TopP        float32
	state       uint64
}

// New constructs a Sampler seeded with rngState, matching
// clamma_sampler_construct's rng_state field.
func New(temperature, topP float32, rngSeed uint64) *Sampler {
	return &Sampler{Temperature: temperature, TopP: topP, state: rngSeed}
}

// nextU32 advances the xorshift64* state and returns the next pseudo-random
// 32-bit value, matching random_u32 exactly.
func (s *Sampler) nextU32() uint32 {
	s.state ^= s.state >> 12
	s.state ^= s.state << 25
	s.state ^= s.state >> 27
	return uint32((s.state * 0x2545F4914F6CDD1D) >> 32)
}

// nextFloat32 returns a pseudo-random float in [0, 1), matching
// random_f32.
func (s *Sampler) nextFloat32() float32 {
	return float32(s.nextU32()>>8) / 16777216.0
}

// Sample picks the next token id from logits, mutating logits in place
// when temperature != 0 (scaling and softmax are applied destructively,
// matching the original's in-place behavior).
func (s *Sampler) Sample(logits []float32) int {
	coin := s.nextFloat32()

	if s.Temperature == 0 {
		return argmax(logits)
	}

	for i := range logits {
		logits[i] /= s.Temperature
	}
	softmax(logits)

	if s.TopP <= 0 || s.TopP >= 1 {
		return sampleMult(logits, coin)
	}

	return sampleTopP(logits, s.TopP, coin)
}

// argmax returns the index of the largest value, first maximum wins on
// ties.
func argmax(x []float32) int {
	maxI := 0
	maxV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxV {
			maxI = i
			maxV = x[i]
		}
	}
	return maxI
}

// softmax normalizes x in place with max-subtraction for stability,
// matching session_softmax.
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

// sampleMult picks an index by CDF comparison against coin, matching
// sample_mult.
func sampleMult(probs []float32, coin float32) int {
	var cdf float32
	for i, p := range probs {
		cdf += p
		if coin < cdf {
			return i
		}
	}
	return len(probs) - 1
}

type probIndex struct {
	index int
	prob  float32
}

// sampleTopP implements nucleus sampling: crop candidates below the cutoff,
// sort descending by probability, truncate at cumulative probability topp,
// then sample from the truncated list, matching sample_topp exactly.
func sampleTopP(probs []float32, topp float32, coin float32) int {
	n := len(probs)
	cutoff := (1.0 - topp) / float32(n-1)

	candidates := make([]probIndex, 0, n)
	for i, p := range probs {
		if p >= cutoff {
			candidates = append(candidates, probIndex{index: i, prob: p})
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].prob > candidates[b].prob
	})

	var cumulative float32
	lastIdx := len(candidates) - 1
	for i, c := range candidates {
		cumulative += c.prob
		if cumulative > topp {
			lastIdx = i
			break
		}
	}

	r := coin * cumulative
	var cdf float32
	for i := 0; i <= lastIdx; i++ {
		cdf += candidates[i].prob
		if r < cdf {
			return candidates[i].index
		}
	}
	return candidates[lastIdx].index
}
