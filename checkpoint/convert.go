package checkpoint

import (
	"encoding/binary"
	"math"
)

// bytesToFloat32 reinterprets a little-endian byte slice as []float32 by
// copying, not aliasing: mmap'd and cached backing stores outlive
// individual Fetch calls on different lifetimes, so a cast-by-unsafe would
// risk a torn read against a concurrent cache eviction.
func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// bytesToInt8 reinterprets a byte slice as []int8; the bit patterns are
// identical, only the signedness interpretation differs.
func bytesToInt8(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, v := range b {
		out[i] = int8(v)
	}
	return out
}
