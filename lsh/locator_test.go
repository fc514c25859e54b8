package lsh

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gasparian/pstable-lsh-go/parallel"
)

func binarySearchLocate(bucketCodes, queryCodes []uint64) []int32 {
	out := make([]int32, len(queryCodes))
	for i, q := range queryCodes {
		if j, ok := slices.BinarySearch(bucketCodes, q); ok {
			out[i] = int32(j)
		} else {
			out[i] = -1
		}
	}
	return out
}

func TestLocate(t *testing.T) {
	t.Parallel()
	buckets := []uint64{3, 7, 9, 20}
	queries := []uint64{9, 1, 3, 3, 21, 20, 8}
	got := Locate(parallel.New(2), buckets, queries)
	assert.Equal(t, []int32{2, -1, 0, 0, -1, 3, -1}, got)
}

func TestLocateEdgeCases(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Locate(nil, []uint64{1, 2}, nil))
	assert.Equal(t, []int32{-1, -1}, Locate(nil, nil, []uint64{1, 2}))
	assert.Equal(t, []int32{0}, Locate(nil, []uint64{0}, []uint64{0}))
}

func TestLocateMatchesBinarySearch(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 7))
	for _, size := range []int{1, 10, 257, 5000} {
		t.Run(fmt.Sprintf("Size%d", size), func(t *testing.T) {
			universe := uint64(size * 3)
			set := make(map[uint64]struct{}, size)
			for len(set) < size {
				set[rng.Uint64N(universe)] = struct{}{}
			}
			buckets := make([]uint64, 0, size)
			for c := range set {
				buckets = append(buckets, c)
			}
			slices.Sort(buckets)

			queries := make([]uint64, size*2)
			for i := range queries {
				queries[i] = rng.Uint64N(universe + 5)
			}
			want := binarySearchLocate(buckets, queries)
			for _, ex := range []*parallel.Executor{nil, parallel.New(4).WithGrain(7), parallel.New(16)} {
				assert.Equal(t, want, Locate(ex, buckets, queries))
			}
		})
	}
}
