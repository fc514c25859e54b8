package lsh

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when an index is built over zero vectors.
	ErrEmptyDataset = errors.New("dataset must contain at least one vector")
	// ErrInvalidDataset is returned for a dataset whose shape does not fit its buffer.
	ErrInvalidDataset = errors.New("invalid dataset shape")
	// ErrInvalidK is returned when the number of hash functions is not positive.
	ErrInvalidK = errors.New("number of hash functions must be positive")
	// ErrInvalidL is returned when the number of hash tables is not positive.
	ErrInvalidL = errors.New("number of hash tables must be positive")
	// ErrInvalidBinWidth is returned when w is not a positive finite number.
	ErrInvalidBinWidth = errors.New("bin width must be a positive finite number")
	// ErrInvalidNeighbors is returned when a query asks for fewer than one neighbor.
	ErrInvalidNeighbors = errors.New("number of neighbors must be positive")
	// ErrHasherNotGenerated is returned when projecting before Generate.
	ErrHasherNotGenerated = errors.New("projection hasher must be generated before use")
	// ErrProjectionOverflow is returned when a quantized coordinate is not representable.
	ErrProjectionOverflow = errors.New("projected coordinate is not finite or out of range")
	// ErrHashCollision is returned when distinct buckets keep sharing a code after re-hashing.
	ErrHashCollision = errors.New("bucket code collision persisted after re-hashing")
	// ErrEmptyBucket reports a matched bucket of size zero, which the build never creates.
	ErrEmptyBucket = errors.New("matched bucket is empty")
	// ErrTableNotBuilt is returned when querying a hash table before Build.
	ErrTableNotBuilt = errors.New("hash table is not built")
	// ErrIndexNotBuilt is returned when querying an index before BuildIndex succeeded.
	ErrIndexNotBuilt = errors.New("index is not built")
	// ErrResultTooLarge is returned when the candidates of a query batch do not fit
	// uint32 offsets. Split the batch or use narrower buckets.
	ErrResultTooLarge = errors.New("query batch result exceeds 2^32 candidates")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// BuildError reports the hash table whose build aborted the index build.
//
// The underlying error can be accessed via errors.Unwrap.
type BuildError struct {
	Table int
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build hash table %d: %v", e.Table, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
