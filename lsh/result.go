package lsh

// TableQueryResult holds the candidates of a query batch in one table as a
// flat CSR array: the candidates of query q are
// ResultSet[ResultStart[q] : ResultStart[q]+ResultSize[q]].
type TableQueryResult struct {
	Q             uint32
	ResultSetSize uint32
	ResultStart   []uint32
	ResultSize    []uint32
	ResultSet     []uint32
}

// Candidates returns the dataset indices found for query q.
func (r *TableQueryResult) Candidates(q int) []uint32 {
	start := r.ResultStart[q]
	return r.ResultSet[start : start+r.ResultSize[q]]
}

// Misses counts the queries that matched no bucket.
func (r *TableQueryResult) Misses() int {
	misses := 0
	for _, s := range r.ResultSize {
		if s == 0 {
			misses++
		}
	}
	return misses
}

// CandidateSet is the cross-table union of candidates in CSR form. The run
// of every query is ascending and free of duplicates.
type CandidateSet struct {
	Start []uint32
	Size  []uint32
	Set   []uint32
}

// Candidates returns the merged dataset indices of query q.
func (c *CandidateSet) Candidates(q int) []uint32 {
	start := c.Start[q]
	return c.Set[start : start+c.Size[q]]
}

// QueryResult is the ranked neighbor list of one query.
type QueryResult struct {
	QueryIdx uint32
	// ResultIdx holds dataset indices by ascending distance, ties by index
	ResultIdx []uint32
	// Distances holds the squared distances aligned with ResultIdx
	Distances []float32
}
