package checkpoint

import (
	"encoding/binary"
	"fmt"

	"github.com/warmcat/clamma-go/weights"
)

// int8Magic and int8HeaderVersion identify the INT8_V2 format: the first
// two little-endian u32s of the file, per txf.c's "p32[0] == 0x616b3432 &&
// p32[1] == 2" check.
const (
	int8Magic         = 0x616b3432
	int8HeaderVersion = 2

	// floatHeaderSize is 7 u32 fields; bodyOffset for FLOAT_V1.
	floatHeaderSize = 7 * 4
	// int8BodyOffset is the fixed body start for INT8_V2, per txf.c's
	// "t->d_ofs = 256".
	int8BodyOffset = 256
)

// parseHeader reads weights.Config and the body offset out of the first
// 256 bytes of a checkpoint, following clamma_txf_construct's magic-number
// branch exactly.
func parseHeader(buf []byte) (weights.Config, uint64, error) {
	if len(buf) < 36 {
		return weights.Config{}, 0, fmt.Errorf("checkpoint: header too short (%d bytes)", len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	version := binary.LittleEndian.Uint32(buf[4:8])

	if magic == int8Magic && version == int8HeaderVersion {
		return parseInt8Header(buf)
	}
	return parseFloatHeader(buf)
}

// parseFloatHeader reads the 7-field FLOAT_V1 header: dim, hidden_dim,
// n_layers, n_heads, n_kv_heads, vocab_size, seq_len, all u32 (vocab_size
// is read as signed i32: a negative value signals a non-shared classifier
// and is negated back to a magnitude).
func parseFloatHeader(buf []byte) (weights.Config, uint64, error) {
	fields := make([]uint32, 7)
	for i := range fields {
		fields[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}

	c := weights.Config{
		Version:   weights.FloatV1,
		Dim:       fields[0],
		HiddenDim: fields[1],
		NLayers:   fields[2],
		NHeads:    fields[3],
		NKVHeads:  fields[4],
		VocabSize: fields[5],
		SeqLen:    fields[6],
	}

	signedVocab := int32(c.VocabSize)
	if signedVocab < 0 {
		c.SharedClassifier = false
		c.VocabSize = uint32(-signedVocab)
	} else {
		c.SharedClassifier = true
	}

	return c, floatHeaderSize, nil
}

// parseInt8Header reads the INT8_V2 header: 7 config u32s at offset 8,
// then a shared_classifier byte and a manually little-endian-assembled
// group_size u32, matching txf.c byte for byte.
func parseInt8Header(buf []byte) (weights.Config, uint64, error) {
	if len(buf) < 41 {
		return weights.Config{}, 0, fmt.Errorf("checkpoint: int8 header too short (%d bytes)", len(buf))
	}

	fields := make([]uint32, 7)
	for i := range fields {
		fields[i] = binary.LittleEndian.Uint32(buf[8+i*4 : 8+i*4+4])
	}

	p := 8 + 7*4
	sharedClassifier := buf[p]
	p++
	groupSize := uint32(buf[p]) | uint32(buf[p+1])<<8 | uint32(buf[p+2])<<16 | uint32(buf[p+3])<<24

	c := weights.Config{
		Version:          weights.Int8V2,
		Dim:              fields[0],
		HiddenDim:        fields[1],
		NLayers:          fields[2],
		NHeads:           fields[3],
		NKVHeads:         fields[4],
		VocabSize:        fields[5],
		SeqLen:           fields[6],
		SharedClassifier: sharedClassifier != 0,
		GroupSize:        groupSize,
	}

	return c, int8BodyOffset, nil
}
