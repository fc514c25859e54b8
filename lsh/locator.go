package lsh

import (
	"github.com/gasparian/pstable-lsh-go/parallel"
)

// Locate returns, for every query code, the position of the equal code in
// bucketCodes, or -1. bucketCodes must be sorted ascending without
// duplicates.
//
// All lookups are answered by one joint pass instead of a binary search per
// query: bucket and query codes are sorted together, bucket entries first on
// ties, and every query is matched against the nearest bucket entry before
// it in sorted order.
func Locate(ex *parallel.Executor, bucketCodes, queryCodes []uint64) []int32 {
	b := len(bucketCodes)
	n := b + len(queryCodes)
	result := make([]int32, len(queryCodes))
	if len(queryCodes) == 0 {
		return result
	}

	keys := make([]uint64, n)
	copy(keys, bucketCodes)
	copy(keys[b:], queryCodes)
	// tags below b are bucket positions, the rest are b + query position
	tags := sequence(n)
	parallel.SortByKey(ex, keys, tags)

	anchor := make([]int32, n)
	ex.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if int(tags[i]) < b {
				anchor[i] = int32(i)
			} else {
				anchor[i] = -1
			}
		}
	})
	parallel.InclusiveScan(ex, anchor, anchor, func(x, y int32) int32 {
		return max(x, y)
	})

	ex.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if int(tags[i]) < b {
				continue
			}
			q := int(tags[i]) - b
			a := anchor[i]
			if a >= 0 && keys[a] == keys[i] {
				result[q] = int32(tags[a])
			} else {
				result[q] = -1
			}
		}
	})
	return result
}
