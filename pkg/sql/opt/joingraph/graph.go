// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package joingraph turns an annotated query tree and catalog metadata into
// the join graph searched by the optimizer: nodes (FROM items), segments
// (referenced columns), terms (predicates), equivalence classes and
// partitions, together with the usable indexes of every node and the
// selectivity of every term.
//
// A Graph is built once per optimization run and is read-only afterwards.
package joingraph

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/sql/opt/cat"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
)

// NodeID identifies a node; it is the position of the FROM item in the query.
type NodeID = int

// SegmentID identifies a segment.
type SegmentID = int

// TermID identifies a term.
type TermID = int

// EqClassID identifies an equivalence class.
type EqClassID = int

// NoEqClass is the ordering of a plan that produces rows in no useful order.
const NoEqClass EqClassID = -1

// ErrInvalidQuery is the mark carried by errors caused by a malformed query
// tree or inconsistent catalog metadata.
var ErrInvalidQuery = errors.New("invalid query")

func invalidf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidQuery)
}

// Graph is the join graph of one query.
type Graph struct {
	Query *qtree.Query

	Nodes      []Node
	Segments   []Segment
	Terms      []Term
	EqClasses  []EqClass
	Partitions []Partition
	Subqueries []Subquery

	// Edges lists the join-edge terms sorted by descending selectivity.
	Edges []TermID

	// GroupBy and OrderBy are the orderings required by the GROUP BY and
	// ORDER BY clauses, or NoEqClass. An ordering can only be provided by a
	// plan when the clause names a single column; the Multi flags are set
	// otherwise, and an explicit sort is always planned.
	GroupBy      EqClassID
	GroupByMulti bool
	OrderBy      EqClassID
	OrderByMulti bool
	HasGroupBy   bool
	HasOrderBy   bool
	Distinct     bool

	// Ordered is set when the join order is forced to follow the FROM clause.
	Ordered bool

	segmentsByRef map[qtree.ColumnRef]SegmentID
}

// Node is one FROM item.
type Node struct {
	ID    NodeID
	Alias string
	// Tables holds the classes scanned by the node: the named class followed
	// by its subclasses. Empty for derived tables.
	Tables  []cat.Table
	Derived *qtree.DerivedTable

	// Card and Pages are the row and page counts of the whole node.
	Card  float64
	Pages float64
	// Width is the estimated width in bytes of the node's projected row.
	Width int

	Segments intsets.Fast
	// Sargs holds the single-node filter terms of the node.
	Sargs intsets.Fast
	// SargSel is the combined selectivity of Sargs.
	SargSel float64
	// Deps is the set of nodes that must be joined before this one.
	Deps intsets.Fast

	// JoinType is the join type used when the node is joined as the inner
	// side: LeftJoin for a null-supplying node, FullJoin for the right side
	// of a full join, InnerJoin otherwise.
	JoinType qtree.JoinType
	Hint     qtree.JoinHint

	Indexes []*IndexEntry
}

// IsOuter returns true if the node is joined with outer-join semantics.
func (n *Node) IsOuter() bool {
	return n.JoinType != qtree.InnerJoin
}

// Segment is one referenced column of a node.
type Segment struct {
	ID   SegmentID
	Head NodeID
	Name string
	// Column is the ordinal of the column in the node's first table, or in
	// the derived table's column list.
	Column int
	Width  int

	Distinct     float64
	NullFraction float64
	HasRange     bool
	Min, Max     float64

	EqClass EqClassID
}

// TermClass classifies a term by the way the search evaluates it.
type TermClass int

const (
	// SargTerm references a single node and is evaluated by its scan.
	SargTerm TermClass = iota
	// JoinTerm references exactly two nodes; it is a join edge.
	JoinTerm
	// PathTerm navigates an object reference from its head node to its
	// target node; it is a join edge that also admits a follow plan.
	PathTerm
	// DependentTerm references three or more nodes and is evaluated at the
	// first join that covers all of them.
	DependentTerm
	// DuringJoinTerm is an ON-clause condition on the preserved side of an
	// outer join; it is evaluated by the outer join itself.
	DuringJoinTerm
	// AfterJoinTerm is a WHERE condition on a null-supplying node that must
	// be checked after null extension.
	AfterJoinTerm
	// OtherTerm references no node at all (constants, uncorrelated
	// subqueries) and is evaluated once every node is joined.
	OtherTerm
)

var termClassNames = [...]string{
	SargTerm:       "sarg",
	JoinTerm:       "join",
	PathTerm:       "path",
	DependentTerm:  "dependent",
	DuringJoinTerm: "during-join",
	AfterJoinTerm:  "after-join",
	OtherTerm:      "other",
}

func (c TermClass) String() string {
	return termClassNames[c]
}

// TermSide describes one side of a comparison term.
type TermSide struct {
	// Seg is the segment when the side is a bare column, or -1.
	Seg   SegmentID
	Nodes intsets.Fast
}

// Term is one predicate.
type Term struct {
	ID    TermID
	Class TermClass
	// Pred is nil for transitive terms.
	Pred *qtree.Predicate
	// Op is the operator after normalization: a bare column, if any, is on
	// the left.
	Op qtree.Operator
	// Left, Right and High are the normalized operands; High is only set for
	// BETWEEN.
	Left, Right, High qtree.Operand
	// Transitive is set for equi-join terms implied by an equivalence class
	// rather than written in the query.
	Transitive bool

	Nodes    intsets.Fast
	Segments intsets.Fast
	// Scope is the set of nodes that must be joined before the term can be
	// evaluated. It contains Nodes.
	Scope intsets.Fast
	Sides [2]TermSide
	// Subqueries holds the subqueries referenced by the term.
	Subqueries intsets.Fast

	Selectivity float64
	EqClass     EqClassID
	// Mergeable is set for equi-join edges usable by a merge join.
	Mergeable bool
	JoinType  qtree.JoinType
	Location  int

	// Head and Target are the endpoints of a PathTerm.
	Head, Target NodeID

	text string
}

func (t *Term) String() string {
	return t.text
}

// IsEdge returns true for terms that connect two nodes.
func (t *Term) IsEdge() bool {
	return t.Class == JoinTerm || t.Class == PathTerm
}

// EqClass is a set of segments known to carry the same value.
type EqClass struct {
	ID       EqClassID
	Segments intsets.Fast
	Nodes    intsets.Fast
	// Term is the edge of a complex merge class whose sides are expressions,
	// or -1.
	Term TermID
}

// Partition is a connected component of the join graph.
type Partition struct {
	ID    int
	Nodes intsets.Fast
	Edges intsets.Fast
	// Deps holds the nodes of other partitions that must be joined first.
	Deps intsets.Fast
}

// Subquery is a correlated or uncorrelated subquery of the query.
type Subquery struct {
	ID   int
	Name string
	// Correlated holds the nodes the subquery references.
	Correlated intsets.Fast
	// Scope is the set of nodes that must be joined before the subquery can
	// be evaluated.
	Scope intsets.Fast
	// Terms holds the terms referencing the subquery. A subquery with no
	// terms appears in the select list and is pinned to a plan node by
	// itself.
	Terms intsets.Fast
}

// Free returns true if the subquery is not evaluated as part of a term.
func (s *Subquery) Free() bool {
	return s.Terms.Empty()
}

// AllNodes returns the set of all nodes.
func (g *Graph) AllNodes() intsets.Fast {
	return intsets.MakeFastRange(0, len(g.Nodes))
}

// AllTerms returns the set of all terms.
func (g *Graph) AllTerms() intsets.Fast {
	return intsets.MakeFastRange(0, len(g.Terms))
}

// Segment returns the segment of the given column, if it is referenced.
func (g *Graph) Segment(ref qtree.ColumnRef) (SegmentID, bool) {
	id, ok := g.segmentsByRef[ref]
	return id, ok
}

// NodeByAlias returns the node with the given alias.
func (g *Graph) NodeByAlias(alias string) (NodeID, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].Alias == alias {
			return i, true
		}
	}
	return -1, false
}

// NullSupplying returns the subset of nodes joined with outer-join semantics.
func (g *Graph) NullSupplying(nodes intsets.Fast) intsets.Fast {
	var res intsets.Fast
	nodes.ForEach(func(i int) {
		if g.Nodes[i].IsOuter() {
			res.Add(i)
		}
	})
	return res
}

// Width returns the row width of the join of the given nodes.
func (g *Graph) Width(nodes intsets.Fast) int {
	w := 0
	nodes.ForEach(func(i int) {
		w += g.Nodes[i].Width
	})
	return w
}

// Pages returns the number of pages occupied by the given nodes.
func (g *Graph) Pages(nodes intsets.Fast) float64 {
	p := 0.0
	nodes.ForEach(func(i int) {
		p += g.Nodes[i].Pages
	})
	return p
}

// PartitionOf returns the partition containing the node.
func (g *Graph) PartitionOf(n NodeID) *Partition {
	for i := range g.Partitions {
		if g.Partitions[i].Nodes.Contains(n) {
			return &g.Partitions[i]
		}
	}
	return nil
}

// InterestingOrders returns the equivalence classes a plan over the given
// nodes could usefully be ordered by: classes that reach nodes outside the
// set (and so may feed a merge join) and the GROUP BY / ORDER BY orderings.
func (g *Graph) InterestingOrders(nodes intsets.Fast) intsets.Fast {
	var res intsets.Fast
	for i := range g.EqClasses {
		ec := &g.EqClasses[i]
		if !ec.Nodes.Intersects(nodes) {
			continue
		}
		if !ec.Nodes.SubsetOf(nodes) {
			res.Add(i)
		}
	}
	for _, e := range []EqClassID{g.GroupBy, g.OrderBy} {
		if e != NoEqClass && g.EqClasses[e].Nodes.Intersects(nodes) {
			res.Add(e)
		}
	}
	return res
}
