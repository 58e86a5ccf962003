// cache.go - MALLOC_CACHE-Backend: liest Gewichte bedarfsweise aus der
// Checkpoint-Datei und haelt sie in einem budgetierten, nebenlaeufigkeits-
// sicheren Cache.
//
// Grounded on original_source/parameter/inc/weight_cache.c's
// clamma_weight_cache (offset/len-keyed lookup, eviction above a byte
// budget, created/fetched/touched/alloced counters), reimplemented on top
// of github.com/dgraph-io/ristretto/v2 instead of the original's
// hand-rolled singly-linked list (see SPEC_FULL.md §11).
package weights

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// cacheKey hashes an (offset, size) pair the way
// original_source/parameter/inc/weight_cache.c keys its linked-list
// entries by (offset, len).
func cacheKey(offset, size uint64) uint64 {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(offset >> (8 * i))
		buf[8+i] = byte(size >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

type cacheStore struct {
	file  *os.File
	base  uint64 // offset of the weight body within the file
	cache *ristretto.Cache[uint64, []byte]

	created uint64
	fetched uint64
	touched uint64
	alloced int64
}

// NewCacheStore opens path for random-reads and serves fetches through a
// ristretto-backed cache. bodyOffset is the byte offset within the file
// where the weight body begins, matching NewMmapStore's convention. limit
// is the byte budget (cost ceiling); 0 means effectively unbounded
// (ristretto still needs a positive MaxCost, so an unbounded cache uses a
// very large ceiling).
func NewCacheStore(path string, bodyOffset uint64, limit uint64) (Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	maxCost := int64(limit)
	if maxCost <= 0 {
		maxCost = 1 << 40 // effectively unbounded
	}

	s := &cacheStore{file: f, base: bodyOffset}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: 1e6,
		MaxCost:     maxCost,
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item[[]byte]) {
			atomic.AddInt64(&s.alloced, -int64(len(item.Value)))
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("weights: init cache: %w", err)
	}
	s.cache = cache

	return s, nil
}

func (s *cacheStore) Fetch(offset, size uint64) ([]byte, error) {
	atomic.AddUint64(&s.fetched, 1)

	key := cacheKey(offset, size)
	if v, ok := s.cache.Get(key); ok {
		atomic.AddUint64(&s.touched, 1)
		return v, nil
	}

	buf := make([]byte, size)
	n, err := s.file.ReadAt(buf, int64(s.base+offset))
	if err != nil || uint64(n) != size {
		return nil, fmt.Errorf("short read at offset=%d size=%d: %w", offset, size, err)
	}

	s.cache.Set(key, buf, int64(size))
	atomic.AddUint64(&s.created, 1)
	atomic.AddInt64(&s.alloced, int64(size))

	return buf, nil
}

// Stats reports the created/fetched/touched/alloced counters from the data
// model (§3).
func (s *cacheStore) Stats() Stats {
	return Stats{
		Created: atomic.LoadUint64(&s.created),
		Fetched: atomic.LoadUint64(&s.fetched),
		Touched: atomic.LoadUint64(&s.touched),
		Alloced: uint64(atomic.LoadInt64(&s.alloced)),
	}
}

func (s *cacheStore) Close() error {
	s.cache.Close()
	return s.file.Close()
}
