package lsh

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gasparian/pstable-lsh-go/parallel"
)

// maxResultSize bounds the flat candidate array of a query batch, whose
// offsets are uint32.
const maxResultSize = math.MaxUint32

// validateParams checks the shape shared by hashers and tables.
func validateParams(k, d int, w float32) error {
	if k <= 0 {
		return ErrInvalidK
	}
	if d <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrInvalidDataset, d)
	}
	if !(w > 0) || math.IsInf(float64(w), 0) {
		return ErrInvalidBinWidth
	}
	return nil
}

// newTableRand returns the generator of table i. Every table draws from its
// own PCG stream so the result does not depend on build order.
func newTableRand(seed uint64, table int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(table)))
}

func sequence(n int) []uint32 {
	s := make([]uint32, n)
	for i := range s {
		s[i] = uint32(i)
	}
	return s
}

func equalCoords(a, b []int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func coordRow(coords []int64, k int, i uint32) []int64 {
	off := int(i) * k
	return coords[off : off+k]
}

// csrOffsets returns the start of every run and the total length. The total
// is summed in 64 bits and must not exceed limit.
func csrOffsets(ex *parallel.Executor, sizes []uint32, limit uint64) ([]uint32, uint32, error) {
	var total uint64
	for _, s := range sizes {
		total += uint64(s)
	}
	if total > limit {
		return nil, 0, fmt.Errorf("%w: %d", ErrResultTooLarge, total)
	}
	starts := make([]uint32, len(sizes))
	parallel.ExclusiveScan(ex, sizes, starts)
	return starts, uint32(total), nil
}
