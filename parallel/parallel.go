// Package parallel provides the data-parallel primitives the LSH index is
// assembled from: for-each over index ranges, map, gather, scans, reduce and
// a stable sort-by-key.
//
// Every function is one pipeline stage. It fans the work out over a bounded
// set of goroutines and returns only after all of them finished, so the next
// stage always observes fully materialized input.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	defaultGrain = 2048
	// chunksPerWorker oversplits the range a little so uneven lanes even out.
	chunksPerWorker = 4
)

// Executor runs stages over contiguous chunks of an index range.
type Executor struct {
	workers int
	grain   int
}

// New creates an executor running at most workers goroutines per stage.
// Non-positive workers means GOMAXPROCS.
func New(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Executor{
		workers: workers,
		grain:   defaultGrain,
	}
}

// WithGrain returns a copy of the executor that never creates chunks smaller
// than grain elements (except the last one).
func (e *Executor) WithGrain(grain int) *Executor {
	e = orDefault(e)
	if grain < 1 {
		grain = 1
	}
	return &Executor{
		workers: e.workers,
		grain:   grain,
	}
}

// Workers returns the goroutine limit of a stage.
func (e *Executor) Workers() int {
	return orDefault(e).workers
}

var sequential = &Executor{workers: 1, grain: defaultGrain}

func orDefault(e *Executor) *Executor {
	if e == nil {
		return sequential
	}
	return e
}

type span struct {
	lo, hi int
}

// split cuts [0,n) into contiguous spans.
func (e *Executor) split(n int) []span {
	if n <= 0 {
		return nil
	}
	count := e.workers * chunksPerWorker
	if maxCount := (n + e.grain - 1) / e.grain; count > maxCount {
		count = maxCount
	}
	if count < 1 {
		count = 1
	}
	size := (n + count - 1) / count
	spans := make([]span, 0, count)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		spans = append(spans, span{lo: lo, hi: hi})
	}
	return spans
}

// each runs fn(i) for i in [0,m) with at most workers goroutines alive.
func (e *Executor) each(m int, fn func(i int) error) error {
	if m == 0 {
		return nil
	}
	if m == 1 || e.workers == 1 {
		for i := 0; i < m; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := 0; i < m; i++ {
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}

// For calls fn on disjoint chunks covering [0,n).
func (e *Executor) For(n int, fn func(lo, hi int)) {
	_ = e.ForErr(n, func(lo, hi int) error {
		fn(lo, hi)
		return nil
	})
}

// ForErr is For with a failing body. The first error is returned after all
// chunks finished.
func (e *Executor) ForErr(n int, fn func(lo, hi int) error) error {
	e = orDefault(e)
	spans := e.split(n)
	return e.each(len(spans), func(i int) error {
		return fn(spans[i].lo, spans[i].hi)
	})
}

// Each calls fn once per item in [0,m), one goroutine per item. It is meant
// for coarse tasks such as whole hash tables.
func (e *Executor) Each(m int, fn func(i int) error) error {
	return orDefault(e).each(m, fn)
}
