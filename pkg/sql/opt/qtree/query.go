// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package qtree defines the annotated query tree handed to the optimizer by
// the semantic analyzer: the FROM items, the predicates with their location
// tags, correlated subqueries, the GROUP BY / ORDER BY / DISTINCT
// requirements and the query hints.
package qtree

import "strings"

// JoinType is the kind of join between a FROM item and the items preceding it.
type JoinType int

const (
	// InnerJoin is a plain (or comma) join.
	InnerJoin JoinType = iota
	// LeftJoin makes the item null-supplying for the preceding items.
	LeftJoin
	// RightJoin makes the preceding items null-supplying for the item.
	RightJoin
	// FullJoin preserves both sides.
	FullJoin
)

var joinTypeNames = [...]string{
	InnerJoin: "inner",
	LeftJoin:  "left",
	RightJoin: "right",
	FullJoin:  "full",
}

func (t JoinType) String() string {
	if int(t) < len(joinTypeNames) {
		return joinTypeNames[t]
	}
	return "unknown"
}

// JoinHint forces the join method used when a FROM item is joined as the
// inner side.
type JoinHint uint8

const (
	// HintNestedLoop forces a nested-loop join.
	HintNestedLoop JoinHint = 1 << iota
	// HintIndexJoin forces a correlated-index join.
	HintIndexJoin
	// HintMerge forces a merge join.
	HintMerge
)

func (h JoinHint) String() string {
	var parts []string
	for _, x := range []struct {
		bit  JoinHint
		name string
	}{{HintNestedLoop, "nl"}, {HintIndexJoin, "idx"}, {HintMerge, "merge"}} {
		if h&x.bit != 0 {
			parts = append(parts, x.name)
		}
	}
	return strings.Join(parts, ",")
}

// Allows returns true if the hint admits the method bit. An empty hint
// admits every method.
func (h JoinHint) Allows(bit JoinHint) bool {
	return h == 0 || h&bit != 0
}

// Query is the optimizer's view of one SELECT block.
type Query struct {
	Tables     []TableSpec `yaml:"tables"`
	Where      []Predicate `yaml:"where"`
	Subqueries []Subquery  `yaml:"subqueries"`

	// Select lists the projected columns. When empty, every column referenced
	// anywhere in the query is considered projected.
	Select   []ColumnRef `yaml:"select"`
	GroupBy  []ColumnRef `yaml:"group_by"`
	OrderBy  []ColumnRef `yaml:"order_by"`
	Distinct bool        `yaml:"distinct"`

	Hints Hints `yaml:"hints"`
}

// TableSpec is one FROM item.
type TableSpec struct {
	// Alias is the correlation name used by column references.
	Alias string `yaml:"alias"`
	// Table is the catalog name of the class. Empty for derived tables.
	Table string `yaml:"table"`
	// Only restricts the scan to the named class, excluding subclasses.
	Only bool `yaml:"only"`
	// Derived is set for derived tables (subqueries in FROM).
	Derived *DerivedTable `yaml:"derived"`
	// Join is the join type of this item with respect to the preceding ones.
	Join JoinType `yaml:"join"`
	// Hint forces the join method when this item is the inner side.
	Hint JoinHint `yaml:"hint"`
}

// DerivedTable describes the result of a subquery in FROM.
type DerivedTable struct {
	Rows    float64         `yaml:"rows"`
	Pages   float64         `yaml:"pages"`
	Columns []DerivedColumn `yaml:"columns"`
	// Correlated lists the aliases of preceding FROM items referenced by the
	// subquery; those items must be joined before the derived table.
	Correlated []string `yaml:"correlated"`
}

// DerivedColumn is one output column of a derived table.
type DerivedColumn struct {
	Name     string  `yaml:"name"`
	Distinct float64 `yaml:"distinct"`
	Width    int     `yaml:"width"`
}

// Subquery is a (possibly correlated) subquery appearing in a predicate or
// in the select list.
type Subquery struct {
	Name string `yaml:"name"`
	// Correlated lists the outer columns the subquery references.
	Correlated []ColumnRef `yaml:"correlated"`
}

// Hints holds query-level optimizer hints.
type Hints struct {
	// Ordered forces the join order to follow the FROM clause.
	Ordered bool `yaml:"ordered"`
	// Indexes holds USING INDEX directives.
	Indexes []IndexHint `yaml:"indexes"`
}

// IndexHint is a USING INDEX directive for one FROM item. Index names may
// carry a "(+)" suffix to force the index or "(-)" to exclude it.
type IndexHint struct {
	Table string `yaml:"table"`
	// None disables all indexes of the table.
	None bool `yaml:"none"`
	// Except inverts Indexes: every index except the listed ones may be used.
	Except  bool     `yaml:"except"`
	Indexes []string `yaml:"indexes"`
}
