package lsh

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gasparian/pstable-lsh-go/parallel"
)

const tol = 1e-5

func TestNewProjectionHasherValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		k, d int
		w    float32
		err  error
	}{
		{"ZeroK", 0, 2, 1, ErrInvalidK},
		{"ZeroD", 1, 0, 1, ErrInvalidDataset},
		{"ZeroW", 1, 2, 0, ErrInvalidBinWidth},
		{"NegativeW", 1, 2, -1, ErrInvalidBinWidth},
		{"NaNW", 1, 2, float32(math.NaN()), ErrInvalidBinWidth},
		{"InfW", 1, 2, float32(math.Inf(1)), ErrInvalidBinWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProjectionHasher(tt.k, tt.d, tt.w)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGenerateDrawsOffsetsInBin(t *testing.T) {
	t.Parallel()
	h, err := NewProjectionHasher(16, 8, 2.5)
	require.NoError(t, err)
	h.Generate(newTableRand(3, 0))
	require.Len(t, h.Matrix, 8*16)
	require.Len(t, h.Offsets, 16)
	for _, b := range h.Offsets {
		assert.GreaterOrEqual(t, b, float32(0))
		assert.Less(t, b, float32(2.5))
	}
	nonZero := 0
	for _, a := range h.Matrix {
		if a != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 0, "projection matrix must not be empty")
}

func TestGenerateIsReproducible(t *testing.T) {
	t.Parallel()
	a, _ := NewProjectionHasher(4, 3, 1)
	b, _ := NewProjectionHasher(4, 3, 1)
	a.Generate(newTableRand(42, 5))
	b.Generate(newTableRand(42, 5))
	assert.Equal(t, a.Matrix, b.Matrix)
	assert.Equal(t, a.Offsets, b.Offsets)

	c, _ := NewProjectionHasher(4, 3, 1)
	c.Generate(newTableRand(42, 6))
	assert.NotEqual(t, a.Matrix, c.Matrix, "tables must draw from different streams")
}

func TestGenerateFollowsTableStream(t *testing.T) {
	t.Parallel()
	h, _ := NewProjectionHasher(3, 4, 2)
	h.Generate(newTableRand(8, 1))

	// N(0, 1) matrix first, then U[0, w) offsets, from one PCG stream
	rng := newTableRand(8, 1)
	for i, a := range h.Matrix {
		assert.Equal(t, float32(rng.NormFloat64()), a, "matrix %d", i)
	}
	for j, b := range h.Offsets {
		assert.Equal(t, float32(rng.Float64()*2), b, "offset %d", j)
	}
}

func TestProjectQuantizes(t *testing.T) {
	t.Parallel()
	h, err := NewProjectionHasher(2, 2, 1)
	require.NoError(t, err)
	// column 0 is a=[1,1], column 1 is a=[1,-1]
	h.setProjection([]float32{1, 1, 1, -1}, []float32{0.5, 0})

	data, err := FromRows([][]float32{{0, 0}, {0, 0.1}, {10, 10}, {-0.2, 0.1}})
	require.NoError(t, err)
	coords, err := h.Project(parallel.New(2), data.General())
	require.NoError(t, err)
	assert.Equal(t, []int64{
		0, 0,
		0, -1,
		20, 0,
		0, -1,
	}, coords)
}

func TestProjectErrors(t *testing.T) {
	t.Parallel()
	h, err := NewProjectionHasher(1, 2, 1)
	require.NoError(t, err)
	data, _ := FromRows([][]float32{{1, 2}})

	_, err = h.Project(nil, data.General())
	assert.ErrorIs(t, err, ErrHasherNotGenerated)

	h.setProjection([]float32{1, 1}, []float32{0})
	wide, _ := FromRows([][]float32{{1, 2, 3}})
	_, err = h.Project(nil, wide.General())
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	huge, _ := FromRows([][]float32{{math.MaxFloat32, 0}})
	h.setProjection([]float32{1, 0}, []float32{0})
	h.W = 1e-30
	_, err = h.Project(nil, huge.General())
	assert.ErrorIs(t, err, ErrProjectionOverflow)

	nan, _ := FromRows([][]float32{{float32(math.NaN()), 0}})
	_, err = h.Project(nil, nan.General())
	assert.ErrorIs(t, err, ErrProjectionOverflow)
}

func TestReduceToScalar(t *testing.T) {
	t.Parallel()
	h, _ := NewProjectionHasher(3, 1, 1)
	coords := []int64{
		1, 2, 3,
		1, 2, 3,
		3, 2, 1,
		-1, 0, 7,
	}
	codes := h.ReduceToScalar(parallel.New(4), coords, 9)
	require.Len(t, codes, 4)
	assert.Equal(t, codes[0], codes[1], "equal coordinates must share a code")
	assert.NotEqual(t, codes[0], codes[2])
	assert.NotEqual(t, codes[0], codes[3])

	reseeded := h.ReduceToScalar(nil, coords, 10)
	assert.NotEqual(t, codes[0], reseeded[0], "codes must depend on the seed")
}

func TestProjectMatchesDirectFormula(t *testing.T) {
	t.Parallel()
	const k, d = 5, 7
	h, _ := NewProjectionHasher(k, d, 0.75)
	h.Generate(newTableRand(11, 0))
	rng := rand.New(rand.NewPCG(1, 2))
	rows := make([][]float32, 50)
	for i := range rows {
		rows[i] = make([]float32, d)
		for j := range rows[i] {
			rows[i][j] = float32(rng.NormFloat64())
		}
	}
	data, _ := FromRows(rows)
	coords, err := h.Project(parallel.New(3).WithGrain(4), data.General())
	require.NoError(t, err)
	for i, r := range rows {
		for j := 0; j < k; j++ {
			var dot float64
			for x := 0; x < d; x++ {
				dot += float64(r[x]) * float64(h.Matrix[x*k+j])
			}
			want := math.Floor((dot + float64(h.Offsets[j])) / float64(h.W))
			// float32 accumulation may land on the other side of a bin edge
			assert.InDelta(t, want, float64(coords[i*k+j]), 1+tol)
		}
	}
}
