package checkpoint

import (
	"fmt"

	"github.com/warmcat/clamma-go/weights"
)

// Matrix is one weight matrix, populated in exactly one of its two fields
// depending on the owning Model's version.
type Matrix struct {
	F []float32
	Q weights.Quantized
}

// Model is a loaded checkpoint: its config, its byte layout, the accessor
// that fetches bytes from whichever backing store Load chose, and the
// token embedding table, which is always a plain float32 table in memory
// (dequantized once at load time for INT8_V2, per clamma_txf_construct's
// "dequantize token embedding table" step).
type Model struct {
	Config   weights.Config
	accessor *weights.Accessor
	layout   *Layout

	tokenEmbedding []float32
}

// Version reports which on-disk format this model was loaded from.
func (m *Model) Version() weights.Version {
	return m.Config.Version
}

// TokenRow returns the dim-length embedding row for one token id. It never
// touches the accessor: the full table was materialized at load time.
func (m *Model) TokenRow(token uint32) []float32 {
	dim := int(m.Config.Dim)
	return m.tokenEmbedding[int(token)*dim : int(token)*dim+dim]
}

// RMSWeight fetches a plain float32 RMSNorm weight vector: rms_att_weight
// or rms_ffn_weight for one layer.
func (m *Model) RMSWeight(kind TensorKind, layer int) ([]float32, error) {
	var r region
	switch {
	case m.Config.Version == weights.FloatV1:
		perLayer, ok := m.layout.floatPerLayer[kind]
		if !ok {
			return nil, fmt.Errorf("checkpoint: %v is not an RMS weight", kind)
		}
		rowBytes := perLayer.size / uint64(m.Config.NLayers)
		r = region{offset: perLayer.offset + uint64(layer)*rowBytes, size: rowBytes}
	case kind == RMSAtt:
		r = m.layout.int8RMSAtt[layer]
	case kind == RMSFFN:
		r = m.layout.int8RMSFFN[layer]
	default:
		return nil, fmt.Errorf("checkpoint: %v is not an RMS weight", kind)
	}

	b, err := m.accessor.Fetch(r.offset, r.size)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32(b), nil
}

func (m *Model) finalRMSRegion() region {
	if m.Config.Version == weights.FloatV1 {
		return m.layout.floatRMSFinal
	}
	return m.layout.int8RMSFinal
}

// RMSFinal fetches rms_final_weight.
func (m *Model) RMSFinal() ([]float32, error) {
	r := m.finalRMSRegion()
	b, err := m.accessor.Fetch(r.offset, r.size)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32(b), nil
}

// Weight fetches one per-layer matrix (wq, wk, wv, wo, w1, w2, w3) as a
// Matrix: F populated for FLOAT_V1, Q populated for INT8_V2.
func (m *Model) Weight(kind TensorKind, layer int) (Matrix, error) {
	if m.Config.Version == weights.FloatV1 {
		perLayer, ok := m.layout.floatPerLayer[kind]
		if !ok {
			return Matrix{}, fmt.Errorf("checkpoint: %v has no float layout", kind)
		}
		rowBytes := perLayer.size / uint64(m.Config.NLayers)
		b, err := m.accessor.Fetch(perLayer.offset+uint64(layer)*rowBytes, rowBytes)
		if err != nil {
			return Matrix{}, err
		}
		return Matrix{F: bytesToFloat32(b)}, nil
	}

	rows, ok := m.layout.int8PerLayer[kind]
	if !ok {
		return Matrix{}, fmt.Errorf("checkpoint: %v has no int8 layout", kind)
	}
	qr := rows[layer]
	qb, err := m.accessor.Fetch(qr.q.offset, qr.q.size)
	if err != nil {
		return Matrix{}, err
	}
	sb, err := m.accessor.Fetch(qr.s.offset, qr.s.size)
	if err != nil {
		return Matrix{}, err
	}
	return Matrix{Q: weights.Quantized{Q: bytesToInt8(qb), S: bytesToFloat32(sb)}}, nil
}

// Classifier fetches wcls, the final logits projection. It aliases the
// token embedding table's quantRegion or region when the checkpoint uses a
// shared classifier.
func (m *Model) Classifier() (Matrix, error) {
	if m.Config.Version == weights.FloatV1 {
		b, err := m.accessor.Fetch(m.layout.floatWcls.offset, m.layout.floatWcls.size)
		if err != nil {
			return Matrix{}, err
		}
		return Matrix{F: bytesToFloat32(b)}, nil
	}

	qb, err := m.accessor.Fetch(m.layout.int8Wcls.q.offset, m.layout.int8Wcls.q.size)
	if err != nil {
		return Matrix{}, err
	}
	sb, err := m.accessor.Fetch(m.layout.int8Wcls.s.offset, m.layout.int8Wcls.s.size)
	if err != nil {
		return Matrix{}, err
	}
	return Matrix{Q: weights.Quantized{Q: bytesToInt8(qb), S: bytesToFloat32(sb)}}, nil
}

// Close releases the underlying backing store.
func (m *Model) Close() error {
	return m.accessor.Close()
}

// Stats forwards the accessor's fetch/cache counters (spec.md §8's
// observability hook for the MALLOC_CACHE backend).
func (m *Model) Stats() weights.Stats {
	return m.accessor.Stats()
}
