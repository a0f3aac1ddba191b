// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

// Table is an interface to a database table (class), exposing only the
// information needed by the query optimizer.
type Table interface {
	DataSource

	// ColumnCount returns the number of columns in the table.
	ColumnCount() int

	// Column returns a Column interface to the column at the ith ordinal
	// position within the table, where i < ColumnCount.
	Column(i int) Column

	// IndexCount returns the number of indexes (and unique constraints backed
	// by an index) defined on the table.
	IndexCount() int

	// Index returns the ith index, where i < IndexCount.
	Index(i int) Index

	// Statistics returns the row and page counts of the table. The second
	// return value is false when no statistics have been collected.
	Statistics() (TableStatistics, bool)

	// SubclassCount returns the number of direct subclasses of the table.
	SubclassCount() int

	// Subclass returns the ith direct subclass, where i < SubclassCount.
	Subclass(i int) Table
}

// Column is an interface to a table column.
type Column interface {
	// Ordinal returns the position of the column in its table.
	Ordinal() int

	// ColName returns the name of the column.
	ColName() string

	// AvgSize returns the average encoded width of the column in bytes.
	AvgSize() int

	// Statistic returns the column's statistic, if one was collected.
	Statistic() (ColumnStatistic, bool)
}

// FindColumn returns the ordinal of the named column, or -1.
func FindColumn(tab Table, name string) int {
	for i, n := 0, tab.ColumnCount(); i < n; i++ {
		if tab.Column(i).ColName() == name {
			return i
		}
	}
	return -1
}

// Hierarchy returns the table followed by all of its subclasses, depth first.
func Hierarchy(tab Table) []Table {
	res := []Table{tab}
	for i := 0; i < tab.SubclassCount(); i++ {
		res = append(res, Hierarchy(tab.Subclass(i))...)
	}
	return res
}
