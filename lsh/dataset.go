package lsh

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/gasparian/pstable-lsh-go/vector"
)

// Dataset is a row-major buffer of N vectors of dimension D. Row i starts at
// i*LD; the LD-D trailing values of each row are padding.
type Dataset struct {
	Data []float32
	N    int
	D    int
	LD   int
}

// NewDataset validates the shape and wraps data without copying it.
func NewDataset(data []float32, n, d, ld int) (*Dataset, error) {
	if n < 0 || d < 0 || ld < d {
		return nil, fmt.Errorf("%w: n=%d d=%d ld=%d", ErrInvalidDataset, n, d, ld)
	}
	if n > 0 {
		if d == 0 {
			return nil, fmt.Errorf("%w: zero dimension", ErrInvalidDataset)
		}
		if need := (n-1)*ld + d; len(data) < need {
			return nil, fmt.Errorf("%w: buffer holds %d values, need %d", ErrInvalidDataset, len(data), need)
		}
	}
	return &Dataset{Data: data, N: n, D: d, LD: ld}, nil
}

// FromRows copies equally sized rows into a dense dataset.
func FromRows(rows [][]float32) (*Dataset, error) {
	if len(rows) == 0 {
		return &Dataset{}, nil
	}
	d := len(rows[0])
	data := make([]float32, 0, len(rows)*d)
	for i, r := range rows {
		if len(r) != d {
			return nil, fmt.Errorf("row %d: %w", i, &ErrDimensionMismatch{Expected: d, Actual: len(r)})
		}
		data = append(data, r...)
	}
	return NewDataset(data, len(rows), d, d)
}

// Row returns vector i without copying.
func (ds *Dataset) Row(i int) []float32 {
	off := i * ds.LD
	return ds.Data[off : off+ds.D]
}

// General returns the dataset as an N×D blas32 matrix with stride LD.
func (ds *Dataset) General() blas32.General {
	return vector.NewGeneral(ds.Data, ds.N, ds.D, ds.LD)
}

// Slice returns a view of rows [lo, hi).
func (ds *Dataset) Slice(lo, hi int) *Dataset {
	if lo == hi {
		return &Dataset{D: ds.D, LD: ds.LD}
	}
	return &Dataset{
		Data: ds.Data[lo*ds.LD : (hi-1)*ds.LD+ds.D],
		N:    hi - lo,
		D:    ds.D,
		LD:   ds.LD,
	}
}

// SizeBytes is the size of the backing buffer.
func (ds *Dataset) SizeBytes() uint64 {
	return uint64(len(ds.Data)) * 4
}
