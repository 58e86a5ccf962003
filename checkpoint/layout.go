// Package checkpoint parses the two on-disk model formats (FLOAT_V1,
// INT8_V2) into byte offsets against a weights.Store, without ever reading
// the whole file into a Go slice.
//
// Grounded on original_source/parameter/inc/txf.c's clamma_txf_construct:
// the header parse, the magic-number format switch, and the sequential
// pointer-arithmetic weight layout for both versions.
package checkpoint

import "github.com/warmcat/clamma-go/weights"

// TensorKind names one of the per-layer weight matrices. Order matches the
// sequence txf.c lays them out in.
type TensorKind int

const (
	RMSAtt TensorKind = iota
	WQ
	WK
	WV
	WO
	RMSFFN
	W1
	W2
	W3
)

// region is a byte range within the body (everything after the header).
type region struct {
	offset uint64
	size   uint64
}

// quantRegion is one quantized tensor's q and s byte ranges.
type quantRegion struct {
	q region
	s region
}

// Layout is the fully computed set of byte offsets for every weight in one
// checkpoint, derived purely from weights.Config. It holds no file handle
// and does no I/O; Model uses it to drive Accessor.Fetch calls.
type Layout struct {
	cfg weights.Config

	// FLOAT_V1: one contiguous float32 region per per-layer matrix (the
	// n_layers dimension is folded into the region's size; callers index
	// into it with layer*rowsPerLayer*n).
	floatTokenEmbedding region
	floatPerLayer       map[TensorKind]region
	floatRMSFinal       region
	floatWcls           region

	// INT8_V2: one quantRegion per layer per tensor kind, plus the
	// always-float RMS weights and the single q_tokens/wcls tensors.
	qTokens      quantRegion
	int8RMSAtt   []region // len n_layers
	int8RMSFFN   []region // len n_layers
	int8RMSFinal region
	int8PerLayer map[TensorKind][]quantRegion // len n_layers each, keys WQ..W3
	int8Wcls     quantRegion
}

// rowCounts returns (n_layers, elements in one layer's tensor) for a given
// tensor kind, matching the element counts txf.c passes to
// init_quantized_tensors / the float pointer-arithmetic strides.
func rowCounts(c weights.Config, k TensorKind) (n, elementsPerRow uint32) {
	headSize := c.HeadSize()
	switch k {
	case RMSAtt, RMSFFN:
		return c.NLayers, c.Dim
	case WQ:
		return c.NLayers, c.Dim * (c.NHeads * headSize)
	case WK, WV:
		return c.NLayers, c.Dim * (c.NKVHeads * headSize)
	case WO:
		return c.NLayers, (c.NHeads * headSize) * c.Dim
	case W1, W3:
		return c.NLayers, c.Dim * c.HiddenDim
	case W2:
		return c.NLayers, c.HiddenDim * c.Dim
	default:
		return 0, 0
	}
}

// newLayout walks the body exactly as clamma_txf_construct does, advancing
// a running cursor and recording offsets as it goes.
func newLayout(c weights.Config, bodyOffset uint64) *Layout {
	l := &Layout{cfg: c}

	if c.Version == weights.FloatV1 {
		l.layoutFloatV1(bodyOffset)
	} else {
		l.layoutInt8V2(bodyOffset)
	}
	return l
}

func (l *Layout) layoutFloatV1(bodyOffset uint64) {
	c := l.cfg
	headSize := c.HeadSize()
	cur := bodyOffset

	advance := func(elements uint32) region {
		r := region{offset: cur, size: uint64(elements) * 4}
		cur += r.size
		return r
	}

	l.floatTokenEmbedding = advance(c.VocabSize * c.Dim)

	l.floatPerLayer = make(map[TensorKind]region)
	order := []TensorKind{RMSAtt, WQ, WK, WV, WO, RMSFFN, W1, W2, W3}
	for _, k := range order {
		_, perRow := rowCounts(c, k)
		l.floatPerLayer[k] = advance(perRow * c.NLayers)
	}

	l.floatRMSFinal = advance(c.Dim)

	// skip the two RoPE frequency tables, same as txf.c
	cur += uint64(c.SeqLen*headSize/2) * 4
	cur += uint64(c.SeqLen*headSize/2) * 4

	if c.SharedClassifier {
		l.floatWcls = l.floatTokenEmbedding
	} else {
		l.floatWcls = region{offset: cur, size: uint64(c.VocabSize*c.Dim) * 4}
	}
}

// quantAdvance lays out n consecutive (q, s) pairs starting at *cur,
// mirroring init_quantized_tensors: each row's q bytes are immediately
// followed by that row's s bytes, not grouped as all-q-then-all-s.
func quantAdvance(cur *uint64, n, elementsPerRow, groupSize uint32) []quantRegion {
	out := make([]quantRegion, n)
	for i := uint32(0); i < n; i++ {
		q := region{offset: *cur, size: uint64(elementsPerRow)}
		*cur += q.size
		s := region{offset: *cur, size: uint64(elementsPerRow/groupSize) * 4}
		*cur += s.size
		out[i] = quantRegion{q: q, s: s}
	}
	return out
}

func (l *Layout) layoutInt8V2(bodyOffset uint64) {
	c := l.cfg
	cur := bodyOffset

	l.int8RMSAtt = make([]region, c.NLayers)
	for i := range l.int8RMSAtt {
		l.int8RMSAtt[i] = region{offset: cur, size: uint64(c.Dim) * 4}
		cur += l.int8RMSAtt[i].size
	}
	l.int8RMSFFN = make([]region, c.NLayers)
	for i := range l.int8RMSFFN {
		l.int8RMSFFN[i] = region{offset: cur, size: uint64(c.Dim) * 4}
		cur += l.int8RMSFFN[i].size
	}
	l.int8RMSFinal = region{offset: cur, size: uint64(c.Dim) * 4}
	cur += l.int8RMSFinal.size

	qtok := quantAdvance(&cur, 1, c.Dim*c.VocabSize, c.GroupSize)
	l.qTokens = qtok[0]

	l.int8PerLayer = make(map[TensorKind][]quantRegion)
	for _, k := range []TensorKind{WQ, WK, WV, WO, W1, W2, W3} {
		_, perRow := rowCounts(c, k)
		l.int8PerLayer[k] = quantAdvance(&cur, c.NLayers, perRow, c.GroupSize)
	}

	if c.SharedClassifier {
		l.int8Wcls = l.qTokens
	} else {
		wcls := quantAdvance(&cur, 1, c.Dim*c.VocabSize, c.GroupSize)
		l.int8Wcls = wcls[0]
	}
}
