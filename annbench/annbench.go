// Package annbench evaluates approximate neighbor lists against exact
// ground truth and loads ann-benchmarks datasets.
package annbench

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/gasparian/pstable-lsh-go/lsh"
)

// ErrHDF5Unsupported is returned by the HDF5 loaders of a binary built
// without the hdf5 tag.
var ErrHDF5Unsupported = errors.New("hdf5 support not compiled in, rebuild with -tags hdf5")

// Names of the datasets inside an ann-benchmarks file
const (
	TrainSet     = "train"
	TestSet      = "test"
	NeighborsSet = "neighbors"
	DistancesSet = "distances"
)

// PrecisionRecall returns the share of predictions found in groundTruth and
// the share of groundTruth found in predictions. Duplicates are counted once.
func PrecisionRecall[P, G constraints.Integer](prediction []P, groundTruth []G) (float64, float64) {
	truth := make(map[int64]struct{}, len(groundTruth))
	for _, g := range groundTruth {
		truth[int64(g)] = struct{}{}
	}
	seen := make(map[int64]struct{}, len(prediction))
	valid := 0
	for _, p := range prediction {
		key := int64(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := truth[key]; ok {
			valid++
		}
	}
	precision := 0.0
	if len(seen) > 0 {
		precision = float64(valid) / float64(len(seen))
	}
	recall := 0.0
	if len(truth) > 0 {
		recall = float64(valid) / float64(len(truth))
	}
	return precision, recall
}

// Report summarizes recall@N over a query batch.
type Report struct {
	Queries    int
	Neighbors  int
	MeanRecall float64
	MinRecall  float64
	// Empty counts the queries that got no neighbor at all
	Empty int
	// Recall holds recall@N per result, in result order
	Recall []float64
}

// Evaluate compares every result with the first n entries of its ground
// truth row.
func Evaluate(results []lsh.QueryResult, groundTruth [][]int32, n int) (Report, error) {
	if n <= 0 {
		return Report{}, fmt.Errorf("number of neighbors must be positive, got %d", n)
	}
	rep := Report{
		Queries:   len(results),
		Neighbors: n,
		MinRecall: 1,
		Recall:    make([]float64, len(results)),
	}
	if len(results) == 0 {
		rep.MinRecall = 0
		return rep, nil
	}
	var sum float64
	for i, res := range results {
		q := int(res.QueryIdx)
		if q >= len(groundTruth) {
			return Report{}, fmt.Errorf("no ground truth for query %d: %d rows loaded", q, len(groundTruth))
		}
		truth := groundTruth[q]
		if len(truth) > n {
			truth = truth[:n]
		}
		_, recall := PrecisionRecall(res.ResultIdx, truth)
		rep.Recall[i] = recall
		sum += recall
		rep.MinRecall = min(rep.MinRecall, recall)
		if len(res.ResultIdx) == 0 {
			rep.Empty++
		}
	}
	rep.MeanRecall = sum / float64(len(results))
	return rep, nil
}
