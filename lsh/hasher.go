package lsh

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gasparian/pstable-lsh-go/parallel"
	"github.com/gasparian/pstable-lsh-go/vector"
)

// maxCoord bounds the magnitude of a quantized coordinate.
const maxCoord = 1 << 62

// ProjectionHasher holds the p-stable hash functions of one table:
// h_j(v) = floor((v·a_j + b_j) / w) for j in [0, K).
type ProjectionHasher struct {
	K int
	D int
	W float32
	// Matrix is D×K row-major, column j is a_j with N(0, 1) entries
	Matrix []float32
	// Offsets holds b_j drawn from U[0, W)
	Offsets []float32

	// planes is Matrix transposed (K×D), one contiguous row per a_j
	planes blas32.General
}

// NewProjectionHasher creates a hasher for d-dimensional vectors. Generate
// must be called before projecting.
func NewProjectionHasher(k, d int, w float32) (*ProjectionHasher, error) {
	if err := validateParams(k, d, w); err != nil {
		return nil, err
	}
	return &ProjectionHasher{K: k, D: d, W: w}, nil
}

// Generate draws the projection matrix from N(0, 1) and the offsets from
// U[0, W) using rng.
func (h *ProjectionHasher) Generate(rng *rand.Rand) {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	matrix := make([]float32, h.D*h.K)
	for i := range matrix {
		matrix[i] = float32(normal.Rand())
	}
	uniform := distuv.Uniform{Min: 0, Max: float64(h.W), Src: rng}
	offsets := make([]float32, h.K)
	for j := range offsets {
		b := float32(uniform.Rand())
		if b >= h.W {
			b = math.Nextafter32(h.W, 0)
		}
		offsets[j] = b
	}
	h.setProjection(matrix, offsets)
}

func (h *ProjectionHasher) setProjection(matrix, offsets []float32) {
	h.Matrix = matrix
	h.Offsets = offsets
	h.planes = vector.Transpose(vector.NewGeneral(matrix, h.D, h.K, h.K))
}

func (h *ProjectionHasher) generated() bool {
	return h.planes.Rows == h.K && len(h.Offsets) == h.K
}

// Project quantizes every row of vectors into K coordinates, returned
// row-major (vectors.Rows × K).
func (h *ProjectionHasher) Project(ex *parallel.Executor, vectors blas32.General) ([]int64, error) {
	if !h.generated() {
		return nil, ErrHasherNotGenerated
	}
	if vectors.Cols != h.D {
		return nil, &ErrDimensionMismatch{Expected: h.D, Actual: vectors.Cols}
	}
	k := h.K
	coords := make([]int64, vectors.Rows*k)
	err := ex.ForErr(vectors.Rows, func(lo, hi int) error {
		projected := make([]float32, (hi-lo)*k)
		block := vectors
		block.Rows = hi - lo
		block.Data = vectors.Data[lo*vectors.Stride:]
		vector.Project(block, h.planes, projected)
		for i, v := range projected {
			q := math.Floor(float64((v + h.Offsets[i%k]) / h.W))
			if math.IsNaN(q) || math.Abs(q) >= maxCoord {
				return fmt.Errorf("%w: row %d", ErrProjectionOverflow, lo+i/k)
			}
			coords[lo*k+i] = int64(q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return coords, nil
}

// ReduceToScalar hashes the K coordinates of every row into one bucket code.
// Rows with equal coordinates always get equal codes; the table detects the
// rare case of different coordinates sharing a code.
func (h *ProjectionHasher) ReduceToScalar(ex *parallel.Executor, coords []int64, seed uint64) []uint64 {
	k := h.K
	codes := make([]uint64, len(coords)/k)
	ex.For(len(codes), func(lo, hi int) {
		buf := make([]byte, 8*k)
		for i := lo; i < hi; i++ {
			for j, c := range coords[i*k : (i+1)*k] {
				binary.LittleEndian.PutUint64(buf[8*j:], uint64(c))
			}
			codes[i] = xxh3.HashSeed(buf, seed)
		}
	})
	return codes
}
