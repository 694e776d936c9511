// Package parallel distributes independent per-item work (quad fitting over
// clusters, decoding over quads) across a worker pool using the same
// atomic-claim, pooled-state pattern the image encoder uses for row-parallel
// work: each worker repeatedly claims the next unclaimed index and writes its
// result directly into a pre-sized, index-keyed slice, so no result lock is
// ever needed.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// maxWorkers caps goroutine count the way the encoder caps row workers:
// beyond a handful of workers, claim-queue contention dominates any gain
// from added parallelism.
const maxWorkers = 8

// statePool hands out per-worker state values. Run creates a new one on
// every call, so state values are not reused across Run invocations.
type statePool[S any] struct {
	pool sync.Pool
	new  func() S
}

func newStatePool[S any](newFn func() S) *statePool[S] {
	return &statePool[S]{new: newFn}
}

func (p *statePool[S]) get() S {
	if v := p.pool.Get(); v != nil {
		return v.(S)
	}
	return p.new()
}

func (p *statePool[S]) put(s S) {
	p.pool.Put(s)
}

// numWorkers picks a worker count for n independent items, never exceeding
// GOMAXPROCS, maxWorkers, or n itself.
func numWorkers(n int) int {
	w := runtime.GOMAXPROCS(0)
	if w > maxWorkers {
		w = maxWorkers
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Run applies fn to every index in [0, n) across a pool of workers, each
// with its own state value produced by newState, and collects results into
// a slice ordered by index. fn's state argument is private to the claiming
// worker for the duration of one call, so fn may freely mutate scratch
// fields on it between calls.
func Run[S any, R any](n int, newState func() S, fn func(state S, index int) R) []R {
	results := make([]R, n)
	if n == 0 {
		return results
	}

	workers := numWorkers(n)
	if workers == 1 {
		state := newState()
		for i := 0; i < n; i++ {
			results[i] = fn(state, i)
		}
		return results
	}

	statePool := newStatePool(newState)

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			state := statePool.get()
			defer statePool.put(state)
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				results[i] = fn(state, i)
			}
		}()
	}
	wg.Wait()
	return results
}

// RunFiltered is Run followed by dropping entries for which keep reports
// false, preserving relative index order. It is the shape both quad fitting
// (not every cluster yields a quad) and decoding (not every quad decodes)
// need: a parallel map followed by a serial compaction.
func RunFiltered[S any, R any](n int, newState func() S, fn func(state S, index int) (R, bool)) []R {
	type slot struct {
		value R
		ok    bool
	}
	slots := Run(n, newState, func(state S, index int) slot {
		v, ok := fn(state, index)
		return slot{value: v, ok: ok}
	})

	out := make([]R, 0, len(slots))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.value)
		}
	}
	return out
}
