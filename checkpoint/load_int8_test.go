package checkpoint

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/warmcat/clamma-go/weights"
)

// int8Checkpoint builds a minimal INT8_V2 image. Every scale is 1.0 and
// every quantized byte is a small repeating pattern, so dequantization is
// just a value cast and tests can predict exact results.
func int8Checkpoint(dim, hiddenDim, nLayers, nHeads, nKVHeads, vocabSize, seqLen, groupSize uint32, shared bool) []byte {
	headSize := dim / nHeads

	header := make([]byte, 256)
	binary.LittleEndian.PutUint32(header[0:4], int8Magic)
	binary.LittleEndian.PutUint32(header[4:8], int8HeaderVersion)
	fields := []uint32{dim, hiddenDim, nLayers, nHeads, nKVHeads, vocabSize, seqLen}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(header[8+i*4:8+i*4+4], f)
	}
	p := 8 + 7*4
	if shared {
		header[p] = 1
	}
	p++
	binary.LittleEndian.PutUint32(header[p:p+4], groupSize)

	writeQuant := func(buf *[]byte, elements uint32) {
		q := make([]byte, elements)
		for i := range q {
			q[i] = byte(int8(i%5) - 2)
		}
		*buf = append(*buf, q...)
		s := make([]byte, 4*(elements/groupSize))
		for i := 0; i < len(s); i += 4 {
			binary.LittleEndian.PutUint32(s[i:i+4], math.Float32bits(1.0))
		}
		*buf = append(*buf, s...)
	}

	var body []byte
	rms := make([]byte, 4*dim)
	for i := range rms {
		rms[i] = 0
	}
	for l := uint32(0); l < nLayers; l++ {
		body = append(body, rms...)
	}
	for l := uint32(0); l < nLayers; l++ {
		body = append(body, rms...)
	}
	body = append(body, rms...) // rms_final

	writeQuant(&body, dim*vocabSize) // q_tokens
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, dim*(nHeads*headSize)) // wq
	}
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, dim*(nKVHeads*headSize)) // wk
	}
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, dim*(nKVHeads*headSize)) // wv
	}
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, (nHeads*headSize)*dim) // wo
	}
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, dim*hiddenDim) // w1
	}
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, hiddenDim*dim) // w2
	}
	for l := uint32(0); l < nLayers; l++ {
		writeQuant(&body, dim*hiddenDim) // w3
	}
	if !shared {
		writeQuant(&body, dim*vocabSize) // wcls
	}

	return append(header, body...)
}

func TestLoadInt8V2Shared(t *testing.T) {
	img := int8Checkpoint(4, 8, 1, 2, 2, 4, 4, 4, true)

	m, err := Load(LoadInfo{
		APIVersion: APIVersion,
		AccessMode: weights.AbsoluteAddress,
		ModelBase:  img,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Close()

	if m.Config.Version != weights.Int8V2 {
		t.Fatalf("expected Int8V2, got %v", m.Config.Version)
	}
	if m.Config.GroupSize != 4 {
		t.Fatalf("group size = %d, want 4", m.Config.GroupSize)
	}
	if !m.Config.SharedClassifier {
		t.Fatal("expected shared classifier")
	}

	row := m.TokenRow(0)
	if len(row) != 4 {
		t.Fatalf("TokenRow length = %d, want 4", len(row))
	}
	// scale is 1.0, so dequantized value equals the quantized byte.
	if row[0] != -2 {
		t.Fatalf("TokenRow(0)[0] = %v, want -2", row[0])
	}

	wq, err := m.Weight(WQ, 0)
	if err != nil {
		t.Fatalf("Weight(WQ): %v", err)
	}
	if len(wq.Q.Q) != 16 || len(wq.Q.S) != 4 {
		t.Fatalf("wq shape = (%d,%d), want (16,4)", len(wq.Q.Q), len(wq.Q.S))
	}

	cls, err := m.Classifier()
	if err != nil {
		t.Fatalf("Classifier: %v", err)
	}
	if len(cls.Q.Q) != 16 {
		t.Fatalf("shared classifier should alias q_tokens (len 16), got %d", len(cls.Q.Q))
	}
}

func TestLoadInt8V2NonShared(t *testing.T) {
	img := int8Checkpoint(4, 8, 1, 2, 2, 4, 4, 4, false)

	m, err := Load(LoadInfo{
		APIVersion: APIVersion,
		AccessMode: weights.AbsoluteAddress,
		ModelBase:  img,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer m.Close()

	if m.Config.SharedClassifier {
		t.Fatal("expected non-shared classifier")
	}

	cls, err := m.Classifier()
	if err != nil {
		t.Fatalf("Classifier: %v", err)
	}
	if len(cls.Q.Q) != 16 {
		t.Fatalf("classifier q length = %d, want 16", len(cls.Q.Q))
	}
}
