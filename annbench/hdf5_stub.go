//go:build !hdf5

package annbench

import (
	"fmt"

	"github.com/gasparian/pstable-lsh-go/lsh"
)

// LoadHDF5 reads a float dataset such as "train" or "test".
func LoadHDF5(path, name string) (*lsh.Dataset, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrHDF5Unsupported)
}

// LoadHDF5Neighbors reads the exact neighbor lists of the "neighbors"
// dataset.
func LoadHDF5Neighbors(path, name string) ([][]int32, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrHDF5Unsupported)
}
