package kvcache

// Reset zeroes every stored key and value, returning the cache to its
// just-allocated state for reuse by a new session.
func (c *Cache) Reset() {
	for i := range c.key {
		c.key[i] = 0
	}
	for i := range c.value {
		c.value[i] = 0
	}
}

// Bytes reports the cache's total memory footprint, the key/value term of
// the per-session storage size computed in clamma_txf_session_size.
func (c *Cache) Bytes() uint64 {
	return uint64(len(c.key)+len(c.value)) * 4
}
