// Package kvcache - the per-session key/value cache: two float32 tensors
// of shape [n_layers, seq_len, kv_dim], grown by exactly one slot per
// forward step.
//
// Grounded on original_source/parameter/inc/session.c's
// clamma_session_forward, which indexes key_cache/value_cache as
// `loff + pos*kv_dim` where `loff = l * seq_len * kv_dim`. The teacher's
// original kvcache package modeled a ggml tensor-graph cache shared across
// sequences with sliding-window and chunked-attention variants; this
// module has no tensor graph and one cache belongs to exactly one session,
// so the type is flattened to two plain slices per the data model in
// spec.md §3.
package kvcache

// Cache holds the key and value projections for every layer and position
// of one session, up to seqLen positions.
type Cache struct {
	nLayers uint32
	seqLen  uint32
	kvDim   uint32

	key   []float32
	value []float32
}

// New allocates a zeroed cache sized for nLayers layers, seqLen positions,
// and kvDim floats per position.
func New(nLayers, seqLen, kvDim uint32) *Cache {
	size := int(nLayers) * int(seqLen) * int(kvDim)
	return &Cache{
		nLayers: nLayers,
		seqLen:  seqLen,
		kvDim:   kvDim,
		key:     make([]float32, size),
		value:   make([]float32, size),
	}
}

// SeqLen is the maximum number of positions this cache can hold.
func (c *Cache) SeqLen() uint32 {
	return c.seqLen
}
