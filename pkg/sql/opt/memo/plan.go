// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
)

// Kind identifies the operator of a plan.
type Kind uint8

const (
	// ScanKind reads a single node, sequentially or through an index.
	ScanKind Kind = iota
	// SortKind orders the rows of its input.
	SortKind
	// JoinKind joins two inputs.
	JoinKind
	// FollowKind follows a path term from its input to the target node.
	FollowKind
	// WorstKind is the sentinel plan that every real plan beats.
	WorstKind
)

var kindNames = [...]string{
	ScanKind:   "scan",
	SortKind:   "sort",
	JoinKind:   "join",
	FollowKind: "follow",
	WorstKind:  "worst",
}

func (k Kind) String() string {
	return kindNames[k]
}

// ScanMethod is the access method of a scan.
type ScanMethod uint8

const (
	// SeqScan reads every page of the node.
	SeqScan ScanMethod = iota
	// IndexScan reads a key range of an index and fetches matching rows.
	IndexScan
)

// JoinMethod is the algorithm of a join.
type JoinMethod uint8

const (
	// NestedLoopJoin rescans the inner input for every outer row.
	NestedLoopJoin JoinMethod = iota
	// IndexJoin probes an index of the inner node with every outer row.
	IndexJoin
	// MergeJoin merges two inputs ordered on the same equivalence class.
	MergeJoin
	// CartesianJoin combines independent partitions.
	CartesianJoin
)

var joinMethodNames = [...]string{
	NestedLoopJoin: "nl-join",
	IndexJoin:      "idx-join",
	MergeJoin:      "merge-join",
	CartesianJoin:  "cartesian",
}

func (m JoinMethod) String() string {
	return joinMethodNames[m]
}

// SortPurpose records why a sort was added.
type SortPurpose uint8

const (
	// SortTemp produces an interesting order for a later merge join.
	SortTemp SortPurpose = iota
	// SortGroupBy orders the final result on the GROUP BY columns.
	SortGroupBy
	// SortOrderBy orders the final result on the ORDER BY columns.
	SortOrderBy
	// SortDistinct removes duplicate rows from the final result.
	SortDistinct
)

var sortPurposeNames = [...]string{
	SortTemp:     "temp",
	SortGroupBy:  "group-by",
	SortOrderBy:  "order-by",
	SortDistinct: "distinct",
}

func (p SortPurpose) String() string {
	return sortPurposeNames[p]
}

// TopFlags records which top-level clauses a plan already satisfies.
type TopFlags uint8

const (
	// GroupByDone is set once the GROUP BY sort has been applied.
	GroupByDone TopFlags = 1 << iota
	// OrderByDone is set once the ORDER BY sort has been applied.
	OrderByDone
	// DistinctDone is set once the DISTINCT sort has been applied.
	DistinctDone
)

// Plan is a node of a physical plan tree. The fields common to all operators
// are kept here; the operator-specific payload is in Op.
type Plan struct {
	Kind Kind

	// Nodes is the set of join graph nodes the plan produces rows for.
	Nodes intsets.Fast

	// Card is the estimated number of output rows.
	Card float64

	// Width is the estimated output row width in bytes.
	Width int

	Cost Cost

	// Order is the equivalence class the output is ordered on, or
	// joingraph.NoEqClass.
	Order joingraph.EqClassID

	// Filters are the terms evaluated as residual filters on the output of
	// this operator.
	Filters intsets.Fast

	// Subqueries are the select-list subqueries evaluated at this operator.
	Subqueries intsets.Fast

	Top TopFlags

	Op Operator
}

// Operator is the operator-specific part of a plan.
type Operator interface {
	// Children returns the input plans. The plan holds one reference to each.
	Children() []PlanRef

	// Describe renders the operator on a single line.
	Describe(g *joingraph.Graph) string

	// estimateCost computes the cost of the plan from its inputs.
	estimateCost(c *coster, p *Plan) Cost
}

// Scan reads the rows of a single node.
type Scan struct {
	Method ScanMethod
	Node   joingraph.NodeID

	// Index is the index read by an index scan.
	Index *joingraph.IndexEntry

	// KeyRange are the terms bounding the key range of the index scan, and
	// KeyPrefix is the number of leading key columns they constrain.
	KeyRange  intsets.Fast
	KeyPrefix int

	// KeyFilter are the terms evaluated on index entries before the rows are
	// fetched.
	KeyFilter intsets.Fast

	// Correlated is set when the key range refers to outer nodes, so that the
	// scan is the inner side of an index join.
	Correlated bool
}

// Sort orders its input on an equivalence class.
type Sort struct {
	Input   PlanRef
	Purpose SortPurpose

	// Multi is set when the sort key has more than one column, so no
	// single-class input order can satisfy it.
	Multi bool
}

// Join combines two inputs.
type Join struct {
	Method   JoinMethod
	Outer    PlanRef
	Inner    PlanRef
	JoinType qtree.JoinType

	// JoinTerms are evaluated while matching rows. DuringTerms belong to the
	// ON clause of an outer join, AfterTerms are WHERE terms evaluated after
	// null extension. DupTerms are implied by other terms of the plan and
	// are accounted for without being evaluated.
	JoinTerms   intsets.Fast
	DuringTerms intsets.Fast
	AfterTerms  intsets.Fast
	DupTerms    intsets.Fast

	// MergeTerm is the term driving a merge join, or -1.
	MergeTerm joingraph.TermID
}

// Follow follows a path term from each input row to the target node.
type Follow struct {
	Input PlanRef
	Term  joingraph.TermID
}

// Worst is the placeholder plan every real plan beats.
type Worst struct{}

var _ Operator = &Scan{}
var _ Operator = &Sort{}
var _ Operator = &Join{}
var _ Operator = &Follow{}
var _ Operator = &Worst{}

// Children is part of the Operator interface.
func (s *Scan) Children() []PlanRef { return nil }

// Children is part of the Operator interface.
func (s *Sort) Children() []PlanRef { return []PlanRef{s.Input} }

// Children is part of the Operator interface.
func (j *Join) Children() []PlanRef { return []PlanRef{j.Outer, j.Inner} }

// Children is part of the Operator interface.
func (f *Follow) Children() []PlanRef { return []PlanRef{f.Input} }

// Children is part of the Operator interface.
func (w *Worst) Children() []PlanRef { return nil }

// Describe is part of the Operator interface.
func (s *Scan) Describe(g *joingraph.Graph) string {
	alias := g.Nodes[s.Node].Alias
	if s.Method == SeqScan {
		return "seq-scan " + alias
	}
	var b strings.Builder
	fmt.Fprintf(&b, "index-scan %s@%s", alias, s.Index.Name())
	if !s.KeyRange.Empty() {
		fmt.Fprintf(&b, " range=%s", TermList(g, s.KeyRange))
	}
	if !s.KeyFilter.Empty() {
		fmt.Fprintf(&b, " key-filter=%s", TermList(g, s.KeyFilter))
	}
	return b.String()
}

// Describe is part of the Operator interface.
func (s *Sort) Describe(g *joingraph.Graph) string {
	return "sort (" + s.Purpose.String() + ")"
}

// Describe is part of the Operator interface.
func (j *Join) Describe(g *joingraph.Graph) string {
	var b strings.Builder
	b.WriteString(j.Method.String())
	if j.JoinType != qtree.InnerJoin {
		fmt.Fprintf(&b, " (%s)", j.JoinType)
	}
	if j.Method == MergeJoin {
		fmt.Fprintf(&b, " on %s", g.Terms[j.MergeTerm].String())
	}
	return b.String()
}

// Describe is part of the Operator interface.
func (f *Follow) Describe(g *joingraph.Graph) string {
	return "follow " + g.Terms[f.Term].String()
}

// Describe is part of the Operator interface.
func (w *Worst) Describe(g *joingraph.Graph) string { return "worst" }

// Terms returns every term the plan operator accounts for, whether evaluated
// or implied.
func (p *Plan) Terms() intsets.Fast {
	t := p.Filters.Copy()
	switch op := p.Op.(type) {
	case *Scan:
		t.UnionWith(op.KeyRange)
		t.UnionWith(op.KeyFilter)
	case *Join:
		t.UnionWith(op.JoinTerms)
		t.UnionWith(op.DuringTerms)
		t.UnionWith(op.AfterTerms)
		t.UnionWith(op.DupTerms)
	case *Follow:
		t.Add(op.Term)
	}
	return t
}

// TermList renders a set of terms as a bracketed list.
func TermList(g *joingraph.Graph, terms intsets.Fast) string {
	var b strings.Builder
	b.WriteByte('[')
	terms.ForEach(func(i int) {
		if b.Len() > 1 {
			b.WriteString(", ")
		}
		b.WriteString(g.Terms[i].String())
	})
	b.WriteByte(']')
	return b.String()
}
