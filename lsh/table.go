package lsh

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/gasparian/pstable-lsh-go/parallel"
)

// maxRehash bounds how many hash seeds a table tries before giving up on a
// bucket code collision.
const maxRehash = 8

var errCodeCollision = errors.New("distinct coordinates share a bucket code")

// codeReducer maps rows of quantized coordinates to bucket codes.
type codeReducer func(ex *parallel.Executor, coords []int64, seed uint64) []uint64

// HashTable is one LSH table: a projection hasher plus the dataset grouped
// by bucket code.
type HashTable struct {
	hasher   *ProjectionHasher
	reduce   codeReducer
	hashSeed uint64
	n        int

	// SortedPermutation lists dataset indices grouped by bucket
	SortedPermutation []uint32
	// BucketStart is the offset of bucket j in SortedPermutation
	BucketStart []uint32
	// BucketSize is the number of points in bucket j
	BucketSize []uint32
	// BucketCode is the code of bucket j, strictly ascending
	BucketCode []uint64
	// BucketCoords holds the K quantized coordinates of bucket j
	BucketCoords []int64
}

// TableStats summarizes the bucket directory of a table.
type TableStats struct {
	Buckets int
	Largest int
	Mean    float64
}

// NewHashTable creates an empty table for d-dimensional vectors.
func NewHashTable(k, d int, w float32) (*HashTable, error) {
	hasher, err := NewProjectionHasher(k, d, w)
	if err != nil {
		return nil, err
	}
	return &HashTable{hasher: hasher, reduce: hasher.ReduceToScalar}, nil
}

// Hasher returns the projection hasher of the table.
func (t *HashTable) Hasher() *ProjectionHasher {
	return t.hasher
}

// Build generates the projection from rng and buckets the dataset.
func (t *HashTable) Build(ex *parallel.Executor, data *Dataset, rng *rand.Rand) error {
	if data.N == 0 {
		return ErrEmptyDataset
	}
	if data.D != t.hasher.D {
		return &ErrDimensionMismatch{Expected: t.hasher.D, Actual: data.D}
	}
	t.hasher.Generate(rng)
	return t.bucket(ex, data, rng.Uint64())
}

// bucket indexes data with the already generated hasher.
func (t *HashTable) bucket(ex *parallel.Executor, data *Dataset, hashSeed uint64) error {
	t.reset()
	coords, err := t.hasher.Project(ex, data.General())
	if err != nil {
		return err
	}
	for attempt := uint64(0); attempt < maxRehash; attempt++ {
		seed := hashSeed + attempt
		codes := t.reduce(ex, coords, seed)
		perm := sequence(data.N)
		parallel.SortByKey(ex, codes, perm)
		if err := t.checkCollisions(ex, coords, codes, perm); err != nil {
			continue
		}
		t.index(ex, coords, codes, perm)
		t.hashSeed = seed
		t.n = data.N
		return nil
	}
	return ErrHashCollision
}

// checkCollisions fails when two neighbors in code order share a code but
// not their coordinates.
func (t *HashTable) checkCollisions(ex *parallel.Executor, coords []int64, codes []uint64, perm []uint32) error {
	k := t.hasher.K
	return ex.ForErr(len(codes), func(lo, hi int) error {
		for i := max(lo, 1); i < hi; i++ {
			if codes[i] != codes[i-1] {
				continue
			}
			if !equalCoords(coordRow(coords, k, perm[i]), coordRow(coords, k, perm[i-1])) {
				return errCodeCollision
			}
		}
		return nil
	})
}

// index derives the bucket directory from codes sorted along with perm.
func (t *HashTable) index(ex *parallel.Executor, coords []int64, codes []uint64, perm []uint32) {
	n := len(codes)
	k := t.hasher.K

	boundary := make([]bool, n)
	ex.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			boundary[i] = i == 0 || codes[i] != codes[i-1]
		}
	})
	starts := parallel.Compact(ex, boundary)

	b := len(starts)
	sizes := make([]uint32, b)
	ex.For(b, func(lo, hi int) {
		for j := lo; j < hi; j++ {
			end := uint32(n)
			if j+1 < b {
				end = starts[j+1]
			}
			sizes[j] = end - starts[j]
		}
	})

	bucketCodes := make([]uint64, b)
	parallel.Gather(ex, codes, starts, bucketCodes)

	bucketCoords := make([]int64, b*k)
	ex.For(b, func(lo, hi int) {
		for j := lo; j < hi; j++ {
			copy(bucketCoords[j*k:(j+1)*k], coordRow(coords, k, perm[starts[j]]))
		}
	})

	t.SortedPermutation = perm
	t.BucketStart = starts
	t.BucketSize = sizes
	t.BucketCode = bucketCodes
	t.BucketCoords = bucketCoords
}

func (t *HashTable) reset() {
	t.n = 0
	t.SortedPermutation = nil
	t.BucketStart = nil
	t.BucketSize = nil
	t.BucketCode = nil
	t.BucketCoords = nil
}

func (t *HashTable) built() bool {
	return t.n > 0
}

// Query looks up the bucket of every query vector. A query whose bucket
// does not exist gets an empty candidate list; neighboring buckets are not
// probed.
func (t *HashTable) Query(ex *parallel.Executor, queries *Dataset) (*TableQueryResult, error) {
	if !t.built() {
		return nil, ErrTableNotBuilt
	}
	if queries.D != t.hasher.D {
		return nil, &ErrDimensionMismatch{Expected: t.hasher.D, Actual: queries.D}
	}
	k := t.hasher.K
	q := queries.N
	coords, err := t.hasher.Project(ex, queries.General())
	if err != nil {
		return nil, err
	}
	codes := t.reduce(ex, coords, t.hashSeed)
	hits := Locate(ex, t.BucketCode, codes)

	sizes := make([]uint32, q)
	err = ex.ForErr(q, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			j := hits[i]
			if j < 0 {
				continue
			}
			if !equalCoords(coordRow(coords, k, uint32(i)), coordRow(t.BucketCoords, k, uint32(j))) {
				hits[i] = -1
				continue
			}
			if t.BucketSize[j] == 0 {
				return fmt.Errorf("%w: bucket %d", ErrEmptyBucket, j)
			}
			sizes[i] = t.BucketSize[j]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	starts, total, err := csrOffsets(ex, sizes, maxResultSize)
	if err != nil {
		return nil, err
	}
	set := make([]uint32, total)
	ex.For(q, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			j := hits[i]
			if j < 0 {
				continue
			}
			from := t.BucketStart[j]
			copy(set[starts[i]:starts[i]+sizes[i]], t.SortedPermutation[from:from+sizes[i]])
		}
	})

	return &TableQueryResult{
		Q:             uint32(q),
		ResultSetSize: total,
		ResultStart:   starts,
		ResultSize:    sizes,
		ResultSet:     set,
	}, nil
}

// Stats summarizes the bucket directory.
func (t *HashTable) Stats() TableStats {
	st := TableStats{Buckets: len(t.BucketSize)}
	for _, s := range t.BucketSize {
		st.Largest = max(st.Largest, int(s))
	}
	if st.Buckets > 0 {
		st.Mean = float64(t.n) / float64(st.Buckets)
	}
	return st
}

// Validate checks the structural invariants of the bucket directory.
func (t *HashTable) Validate() error {
	if !t.built() {
		return ErrTableNotBuilt
	}
	b := len(t.BucketStart)
	if len(t.BucketSize) != b || len(t.BucketCode) != b || len(t.BucketCoords) != b*t.hasher.K {
		return fmt.Errorf("bucket directory arrays differ in length")
	}
	if len(t.SortedPermutation) != t.n {
		return fmt.Errorf("permutation holds %d entries, dataset has %d", len(t.SortedPermutation), t.n)
	}
	seen := make([]bool, t.n)
	for _, p := range t.SortedPermutation {
		if int(p) >= t.n || seen[p] {
			return fmt.Errorf("sorted permutation is not a permutation: index %d", p)
		}
		seen[p] = true
	}
	var total uint64
	for j := 0; j < b; j++ {
		if j == 0 && t.BucketStart[0] != 0 {
			return fmt.Errorf("first bucket starts at %d", t.BucketStart[0])
		}
		if j > 0 && t.BucketStart[j] <= t.BucketStart[j-1] {
			return fmt.Errorf("bucket starts not strictly increasing at %d", j)
		}
		if j > 0 && t.BucketCode[j] <= t.BucketCode[j-1] {
			return fmt.Errorf("bucket codes not strictly increasing at %d", j)
		}
		if t.BucketSize[j] == 0 {
			return fmt.Errorf("%w: bucket %d", ErrEmptyBucket, j)
		}
		total += uint64(t.BucketSize[j])
	}
	if total != uint64(t.n) {
		return fmt.Errorf("bucket sizes sum to %d, dataset has %d", total, t.n)
	}
	return nil
}
