//go:build hdf5

package annbench

import (
	"fmt"

	"gonum.org/v1/hdf5"

	"github.com/gasparian/pstable-lsh-go/lsh"
)

// readDataset reads a two dimensional dataset of an ann-benchmarks file.
func readDataset[T float32 | int32](path, name string) ([]T, int, int, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dataset, err := f.OpenDataset(name)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s: open dataset %q: %w", path, name, err)
	}
	defer dataset.Close()

	space := dataset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s: dataset %q shape: %w", path, name, err)
	}
	if len(dims) != 2 {
		return nil, 0, 0, fmt.Errorf("%s: dataset %q has %d dimensions, want 2", path, name, len(dims))
	}
	rows, cols := int(dims[0]), int(dims[1])
	values := make([]T, rows*cols)
	if err := dataset.Read(&values); err != nil {
		return nil, 0, 0, fmt.Errorf("%s: read dataset %q: %w", path, name, err)
	}
	return values, rows, cols, nil
}

// LoadHDF5 reads a float dataset such as "train" or "test".
func LoadHDF5(path, name string) (*lsh.Dataset, error) {
	values, rows, cols, err := readDataset[float32](path, name)
	if err != nil {
		return nil, err
	}
	return lsh.NewDataset(values, rows, cols, cols)
}

// LoadHDF5Neighbors reads the exact neighbor lists of the "neighbors"
// dataset.
func LoadHDF5Neighbors(path, name string) ([][]int32, error) {
	values, rows, cols, err := readDataset[int32](path, name)
	if err != nil {
		return nil, err
	}
	out := make([][]int32, rows)
	for i := range out {
		out[i] = values[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out, nil
}
