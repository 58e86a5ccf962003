// dispatch.go - slices one matmul's output rows into per-worker bands and
// enqueues them as a single atomic batch.
package pool

import "sync"

// Handle is the sync point for one dispatch (§4.D "session_matmul_sync").
// Wait blocks until every row band from the dispatch that produced this
// handle has completed; after Wait returns, the full output is visible to
// the calling goroutine.
type Handle struct {
	wg *sync.WaitGroup
}

// Wait blocks until all row bands of the dispatch have completed.
func (h Handle) Wait() {
	h.wg.Wait()
}

// dispatchMu serializes reservation of ring slots so that a dispatch's
// n_threads jobs are enqueued as one atomic batch, per spec.md §5's "no
// partial enqueue" discipline — without it, two sessions racing to
// dispatch could interleave partial batches when the ring is nearly full.
var dispatchMu sync.Mutex

// Dispatch splits [0, d) into numThreads contiguous row bands (the last
// absorbs any remainder) and enqueues one job per band, each calling run
// with its own [i0, i1) sub-range. It returns immediately; the caller must
// not read or write the output outside of [i0,i1) bounds until Wait
// returns on the returned Handle.
func (p *Pool) Dispatch(d int, run func(i0, i1 int)) Handle {
	numThreads := p.workers
	var wg sync.WaitGroup
	wg.Add(numThreads)

	band := d / numThreads
	part := 0

	dispatchMu.Lock()
	if len(p.ring)+numThreads > cap(p.ring) {
		dispatchMu.Unlock()
		panic("pool: job ring overflow, increase capacity")
	}
	for m := 0; m < numThreads; m++ {
		i0 := part
		i1 := i0 + band
		if m == numThreads-1 {
			i1 = d
		}
		part += band

		p.ring <- job{
			fn: func() { run(i0, i1) },
			wg: &wg,
		}
	}
	dispatchMu.Unlock()

	return Handle{wg: &wg}
}
