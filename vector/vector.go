// Package vector holds the numeric kernels over row-major float32 matrices:
// blas32 views, row projections and squared Euclidean distances.
package vector

import (
	"gonum.org/v1/gonum/blas/blas32"
)

// NewVec creates new blas vector
func NewVec(data []float32) blas32.Vector {
	if data == nil {
		data = make([]float32, 0)
	}
	return blas32.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

// NewGeneral wraps a row-major buffer with leading dimension stride as a
// blas32 matrix. The buffer is not copied.
func NewGeneral(data []float32, rows, cols, stride int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: stride,
		Data:   data,
	}
}

// Row returns row i of m without copying.
func Row(m blas32.General, i int) []float32 {
	off := i * m.Stride
	return m.Data[off : off+m.Cols]
}

// Project writes the dot product of every row of a with every row of planes
// into out, row-major (a.Rows × planes.Rows). Each value is computed by one
// blas32.Dot call over the same operands, so a row projects identically no
// matter which batch it belongs to.
func Project(a, planes blas32.General, out []float32) {
	k := planes.Rows
	out = out[:a.Rows*k]
	for i := 0; i < a.Rows; i++ {
		x := NewVec(Row(a, i))
		dst := out[i*k : (i+1)*k]
		for j := range dst {
			dst[j] = blas32.Dot(x, NewVec(Row(planes, j)))
		}
	}
}

// Transpose returns a dense copy of m transposed.
func Transpose(m blas32.General) blas32.General {
	t := blas32.General{
		Rows:   m.Cols,
		Cols:   m.Rows,
		Stride: m.Rows,
		Data:   make([]float32, m.Rows*m.Cols),
	}
	for i := 0; i < m.Rows; i++ {
		for j, v := range Row(m, i) {
			t.Data[j*t.Stride+i] = v
		}
	}
	return t
}

// SquaredL2 calculates the squared l2-distance between two vectors of the
// same length.
func SquaredL2(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < len(a); i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}

// SquaredL2Batch writes the distance from query to every row of targets
// into out.
func SquaredL2Batch(query []float32, targets blas32.General, out []float32) {
	q := query[:targets.Cols]
	n := min(targets.Rows, len(out))
	for i := 0; i < n; i++ {
		out[i] = SquaredL2(q, Row(targets, i))
	}
}

// SquaredL2Pairs writes the distance between row rowsA[i] of a and row
// rowsB[i] of b into out[i].
func SquaredL2Pairs(a, b blas32.General, rowsA, rowsB []uint32, out []float32) {
	for i := range out {
		out[i] = SquaredL2(Row(a, int(rowsA[i])), Row(b, int(rowsB[i])))
	}
}
