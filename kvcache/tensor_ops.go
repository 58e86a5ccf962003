package kvcache

import "fmt"

// layerOffset returns the index of slot (layer, pos) within the flat key
// or value slice.
func (c *Cache) layerOffset(layer int, pos uint32) (int, error) {
	if pos >= c.seqLen {
		return 0, fmt.Errorf("kvcache: position %d exceeds seq_len %d", pos, c.seqLen)
	}
	loff := layer * int(c.seqLen) * int(c.kvDim)
	return loff + int(pos)*int(c.kvDim), nil
}

// Put writes k and v (each kvDim long) into slot (layer, pos), per §4.E
// step 2e's "copy k, v into key_cache[l, pos], value_cache[l, pos]".
func (c *Cache) Put(layer int, pos uint32, k, v []float32) error {
	off, err := c.layerOffset(layer, pos)
	if err != nil {
		return err
	}
	copy(c.key[off:off+int(c.kvDim)], k)
	copy(c.value[off:off+int(c.kvDim)], v)
	return nil
}

// Key returns the stored key vector for slot (layer, pos).
func (c *Cache) Key(layer int, pos uint32) ([]float32, error) {
	off, err := c.layerOffset(layer, pos)
	if err != nil {
		return nil, err
	}
	return c.key[off : off+int(c.kvDim)], nil
}

// Value returns the stored value vector for slot (layer, pos).
func (c *Cache) Value(layer int, pos uint32) ([]float32, error) {
	off, err := c.layerOffset(layer, pos)
	if err != nil {
		return nil, err
	}
	return c.value[off : off+int(c.kvDim)], nil
}
