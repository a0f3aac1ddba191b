// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

// Index is an interface to a database index, exposing only the information
// needed by the query optimizer.
type Index interface {
	Object

	// Name is the name of the index.
	Name() string

	// Table returns the table on which the index is defined.
	Table() Table

	// IsUnique returns true if the index enforces a unique constraint.
	IsUnique() bool

	// KeyColumnCount returns the number of key columns.
	KeyColumnCount() int

	// KeyColumn returns the table ordinal of the ith key column, where
	// i < KeyColumnCount.
	KeyColumn(i int) int

	// Statistics returns the index statistics. The second return value is
	// false when none were collected.
	Statistics() (IndexStatistics, bool)
}

// SameKeyColumns returns true if both indexes have the same key columns, by
// name, in the same order. Indexes on classes of one hierarchy are compared
// this way, since column ordinals differ between subclasses.
func SameKeyColumns(a, b Index) bool {
	if a.KeyColumnCount() != b.KeyColumnCount() {
		return false
	}
	for i := 0; i < a.KeyColumnCount(); i++ {
		ac := a.Table().Column(a.KeyColumn(i)).ColName()
		bc := b.Table().Column(b.KeyColumn(i)).ColName()
		if ac != bc {
			return false
		}
	}
	return true
}
