// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

// TableStatistics are the cardinality statistics of a table.
type TableStatistics struct {
	// RowCount is the estimated number of rows.
	RowCount float64
	// PageCount is the number of heap pages.
	PageCount float64
}

// ColumnStatistic describes the value distribution of one column.
type ColumnStatistic struct {
	// DistinctCount is the estimated number of distinct values.
	DistinctCount float64
	// NullFraction is the fraction of rows in which the column is NULL.
	NullFraction float64
	// HasRange is set when Min and Max hold a numeric range.
	HasRange bool
	Min, Max float64
}

// IndexStatistics are the physical statistics of an index.
type IndexStatistics struct {
	// Height is the number of levels from the root to the leaves.
	Height int
	// LeafPages is the number of leaf pages.
	LeafPages float64
	// TotalPages is the total number of pages, including non-leaf pages.
	TotalPages float64
	// PrefixDistinct holds, for each key prefix length k (1-based at index
	// k-1), the number of distinct key prefixes.
	PrefixDistinct []float64
	// KeySize is the average size of a key in bytes.
	KeySize int
}

// DistinctKeys returns the number of distinct key prefixes of the given
// length, falling back to the longest known prefix.
func (s *IndexStatistics) DistinctKeys(prefixLen int) float64 {
	if len(s.PrefixDistinct) == 0 || prefixLen <= 0 {
		return 0
	}
	if prefixLen > len(s.PrefixDistinct) {
		prefixLen = len(s.PrefixDistinct)
	}
	return s.PrefixDistinct[prefixLen-1]
}
