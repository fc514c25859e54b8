package lsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDatasetValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		data     []float32
		n, d, ld int
		ok       bool
	}{
		{"Dense", make([]float32, 6), 2, 3, 3, true},
		{"Padded", make([]float32, 7), 2, 3, 4, true},
		{"PaddedWithTail", make([]float32, 8), 2, 3, 4, true},
		{"Empty", nil, 0, 3, 3, true},
		{"ShortBuffer", make([]float32, 5), 2, 3, 3, false},
		{"StrideBelowDim", make([]float32, 6), 2, 3, 2, false},
		{"ZeroDim", make([]float32, 6), 2, 0, 0, false},
		{"NegativeCount", nil, -1, 3, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDataset(tt.data, tt.n, tt.d, tt.ld)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDataset)
			}
		})
	}
}

func TestDatasetRowsAndSlices(t *testing.T) {
	t.Parallel()
	ds, err := NewDataset([]float32{1, 2, -1, 3, 4, -1, 5, 6}, 3, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, ds.Row(1))
	assert.Equal(t, []float32{5, 6}, ds.Row(2))
	assert.EqualValues(t, 32, ds.SizeBytes())

	s := ds.Slice(1, 3)
	assert.Equal(t, 2, s.N)
	assert.Equal(t, []float32{3, 4}, s.Row(0))
	assert.Equal(t, []float32{5, 6}, s.Row(1))
	assert.Zero(t, ds.Slice(2, 2).N)

	_, err = FromRows([][]float32{{1, 2}, {3}})
	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)
}

func TestLSHBuildAndQuery(t *testing.T) {
	t.Parallel()
	data := clusteredDataset(t, 13, 400, 5)
	l, err := New(Config{K: 3, L: 6, W: 4, Seed: 5, Workers: 2}, data, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, 6, l.Config().L)

	require.NoError(t, l.BuildIndex())
	assert.Len(t, l.Index().Tables(), 6)

	res, err := l.Query(data.Slice(10, 20), 3)
	require.NoError(t, err)
	require.Len(t, res, 10)
	for q, r := range res {
		require.NotEmpty(t, r.ResultIdx, "query %d finds at least itself", q)
		assert.Zero(t, r.Distances[0])
	}
}

func TestLSHSeedControlsTables(t *testing.T) {
	t.Parallel()
	data := clusteredDataset(t, 14, 300, 4)
	build := func(seed uint64) []float32 {
		l, err := New(Config{K: 2, L: 2, W: 1, Seed: seed}, data)
		require.NoError(t, err)
		require.NoError(t, l.BuildIndex())
		return l.Index().Tables()[1].Hasher().Matrix
	}
	assert.Equal(t, build(8), build(8))
	assert.NotEqual(t, build(8), build(9))
}

func TestLSHRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	data, _ := FromRows([][]float32{{1}})
	_, err := New(Config{K: 1, L: 1, W: -2}, data)
	assert.ErrorIs(t, err, ErrInvalidBinWidth)
}
