package lsh

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/gasparian/pstable-lsh-go/parallel"
	"github.com/gasparian/pstable-lsh-go/vector"
)

// Index holds L hash tables built over one dataset.
type Index struct {
	k    int
	l    int
	w    float32
	data *Dataset
	opts options
	ex   *parallel.Executor

	tables []*HashTable
	built  bool
}

// NewIndex validates the configuration. The dataset is borrowed and must not
// change while the index is in use.
func NewIndex(k, l int, w float32, data *Dataset, opts ...Option) (*Index, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	idx := &Index{
		opts: o,
		ex:   parallel.New(o.workers),
	}
	if err := idx.configure(k, l, data, w); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) configure(k, l int, data *Dataset, w float32) error {
	if data == nil {
		return fmt.Errorf("%w: nil dataset", ErrInvalidDataset)
	}
	if l <= 0 {
		return ErrInvalidL
	}
	if err := validateParams(k, max(data.D, 1), w); err != nil {
		return err
	}
	idx.k, idx.l, idx.w, idx.data = k, l, w, data
	idx.tables = nil
	idx.built = false
	return nil
}

// BuildIndex builds all tables concurrently. If any table fails the index
// stays unbuilt and the error names the failing table.
func (idx *Index) BuildIndex() error {
	start := time.Now()
	log := idx.opts.logger.With(
		zap.Int("k", idx.k),
		zap.Int("L", idx.l),
		zap.Float32("w", idx.w),
		zap.Int("n", idx.data.N),
		zap.Int("d", idx.data.D),
	)
	idx.tables = nil
	idx.built = false
	if idx.data.N == 0 {
		err := &BuildError{Table: 0, Err: ErrEmptyDataset}
		log.Error("index build failed", zap.Error(err))
		return err
	}

	tables := make([]*HashTable, idx.l)
	err := idx.ex.Each(idx.l, func(i int) error {
		t, err := NewHashTable(idx.k, idx.data.D, idx.w)
		if err == nil {
			if idx.opts.prepareTable != nil {
				idx.opts.prepareTable(t)
			}
			err = t.Build(idx.ex, idx.data, newTableRand(idx.opts.seed, i))
		}
		idx.opts.metrics.ObserveTable(len(t.bucketCodes()), err)
		if err != nil {
			return &BuildError{Table: i, Err: err}
		}
		st := t.Stats()
		log.Debug("hash table built",
			zap.Int("table", i),
			zap.Int("buckets", st.Buckets),
			zap.Int("largest_bucket", st.Largest),
			zap.Float64("mean_bucket", st.Mean),
		)
		tables[i] = t
		if idx.opts.onTableBuilt != nil {
			idx.opts.onTableBuilt(i)
		}
		return nil
	})
	idx.opts.metrics.ObserveBuild(start, err)
	if err != nil {
		log.Error("index build failed", zap.Error(err))
		return err
	}
	idx.tables = tables
	idx.built = true
	log.Info("index built", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (t *HashTable) bucketCodes() []uint64 {
	if t == nil {
		return nil
	}
	return t.BucketCode
}

// Refresh replaces the configuration and the dataset and rebuilds every
// table from scratch.
func (idx *Index) Refresh(k, l int, data *Dataset, w float32) error {
	if err := idx.configure(k, l, data, w); err != nil {
		return err
	}
	return idx.BuildIndex()
}

// Tables returns the hash tables of a built index.
func (idx *Index) Tables() []*HashTable {
	return idx.tables
}

// Built reports whether the last BuildIndex succeeded.
func (idx *Index) Built() bool {
	return idx.built
}

func (idx *Index) checkQueries(queries *Dataset) error {
	if !idx.built {
		return ErrIndexNotBuilt
	}
	if queries == nil {
		return fmt.Errorf("%w: nil queries", ErrInvalidDataset)
	}
	if queries.D != idx.data.D {
		return &ErrDimensionMismatch{Expected: idx.data.D, Actual: queries.D}
	}
	return nil
}

// TableQuery runs the query batch against every table.
func (idx *Index) TableQuery(queries *Dataset) ([]*TableQueryResult, error) {
	if err := idx.checkQueries(queries); err != nil {
		return nil, err
	}
	results := make([]*TableQueryResult, len(idx.tables))
	err := idx.ex.Each(len(idx.tables), func(i int) error {
		r, err := idx.tables[i].Query(idx.ex, queries)
		if err != nil {
			return fmt.Errorf("query hash table %d: %w", i, err)
		}
		results[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Candidates returns the deduplicated union of every table's candidates per
// query.
func (idx *Index) Candidates(queries *Dataset) (*CandidateSet, error) {
	results, err := idx.TableQuery(queries)
	if err != nil {
		return nil, err
	}
	return mergeCandidates(idx.ex, results, queries.N, maxResultSize)
}

// mergeCandidates unions the per-table runs of every query. The merged
// array may hold at most limit candidates.
func mergeCandidates(ex *parallel.Executor, results []*TableQueryResult, q int, limit uint64) (*CandidateSet, error) {
	union := make([]*roaring.Bitmap, q)
	sizes := make([]uint32, q)
	ex.For(q, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			bm := roaring.New()
			for _, r := range results {
				bm.AddMany(r.Candidates(i))
			}
			bm.RunOptimize()
			union[i] = bm
			sizes[i] = uint32(bm.GetCardinality())
		}
	})

	starts, total, err := csrOffsets(ex, sizes, limit)
	if err != nil {
		return nil, err
	}
	set := make([]uint32, total)
	ex.For(q, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			union[i].ManyIterator().NextMany(set[starts[i] : starts[i]+sizes[i]])
			union[i] = nil
		}
	})
	return &CandidateSet{Start: starts, Size: sizes, Set: set}, nil
}

// distances computes the squared distance of every (query, candidate) pair,
// aligned with cands.Set.
func (idx *Index) distances(queries *Dataset, cands *CandidateSet) []float32 {
	ex := idx.ex
	owner := make([]uint32, len(cands.Set))
	ex.For(len(cands.Start), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			run := owner[cands.Start[i] : cands.Start[i]+cands.Size[i]]
			for p := range run {
				run[p] = uint32(i)
			}
		}
	})
	dist := make([]float32, len(cands.Set))
	qm, dm := queries.General(), idx.data.General()
	ex.For(len(dist), func(lo, hi int) {
		vector.SquaredL2Pairs(qm, dm, owner[lo:hi], cands.Set[lo:hi], dist[lo:hi])
	})
	return dist
}

type neighbor struct {
	idx  uint32
	dist float32
}

func compareNeighbors(a, b neighbor) int {
	if c := cmp.Compare(a.dist, b.dist); c != 0 {
		return c
	}
	return cmp.Compare(a.idx, b.idx)
}

// rank orders every query's candidates by distance, then index, and keeps
// the first n.
func rank(ex *parallel.Executor, cands *CandidateSet, dist []float32, n int) []QueryResult {
	out := make([]QueryResult, len(cands.Start))
	ex.For(len(out), func(lo, hi int) {
		var buf []neighbor
		for i := lo; i < hi; i++ {
			start, size := cands.Start[i], cands.Size[i]
			buf = buf[:0]
			for p := start; p < start+size; p++ {
				buf = append(buf, neighbor{idx: cands.Set[p], dist: dist[p]})
			}
			slices.SortFunc(buf, compareNeighbors)
			m := min(n, len(buf))
			res := QueryResult{
				QueryIdx:  uint32(i),
				ResultIdx: make([]uint32, m),
				Distances: make([]float32, m),
			}
			for j := 0; j < m; j++ {
				res.ResultIdx[j] = buf[j].idx
				res.Distances[j] = buf[j].dist
			}
			out[i] = res
		}
	})
	return out
}

// Query returns up to numberOfNeighbors nearest candidates for every query,
// in query order. Fewer results than requested mean the tables did not
// retrieve more candidates.
func (idx *Index) Query(queries *Dataset, numberOfNeighbors int) ([]QueryResult, error) {
	if numberOfNeighbors <= 0 {
		return nil, ErrInvalidNeighbors
	}
	start := time.Now()
	results, err := idx.TableQuery(queries)
	if err != nil {
		return nil, err
	}
	misses := 0
	for _, r := range results {
		misses += r.Misses()
	}
	cands, err := mergeCandidates(idx.ex, results, queries.N, maxResultSize)
	if err != nil {
		return nil, err
	}
	dist := idx.distances(queries, cands)
	out := rank(idx.ex, cands, dist, numberOfNeighbors)

	idx.opts.metrics.ObserveQuery(start, cands.Size, misses)
	idx.opts.logger.Debug("query batch answered",
		zap.Int("queries", queries.N),
		zap.Int("neighbors", numberOfNeighbors),
		zap.Int("candidates", len(cands.Set)),
		zap.Int("table_misses", misses),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
