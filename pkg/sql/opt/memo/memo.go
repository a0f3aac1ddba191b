// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
)

// Memo stores the plans built during one optimization run, and constructs
// and costs new ones. Plans are immutable once built; they are shared by
// reference between the parents and info nodes retaining them.
type Memo struct {
	g     *joingraph.Graph
	arena Arena
	cost  coster
}

// New returns an empty memo for the graph, using the cost parameters in sv.
func New(g *joingraph.Graph, sv *settings.Values) *Memo {
	m := &Memo{g: g}
	m.cost = coster{mem: m, p: MakeCostParams(sv)}
	return m
}

// Graph returns the join graph the plans are built for.
func (m *Memo) Graph() *joingraph.Graph {
	return m.g
}

// CostParams returns the parameters of the cost model.
func (m *Memo) CostParams() CostParams {
	return m.cost.p
}

// Plan returns the plan referred to by r.
func (m *Memo) Plan(r PlanRef) *Plan {
	return m.arena.Get(r)
}

// Arena returns the plan store.
func (m *Memo) Arena() *Arena {
	return &m.arena
}

// Retain adds a reference to the plan.
func (m *Memo) Retain(r PlanRef) { m.arena.Retain(r) }

// Release drops a reference to the plan.
func (m *Memo) Release(r PlanRef) { m.arena.Release(r) }

// Discard frees a plan nobody retained.
func (m *Memo) Discard(r PlanRef) { m.arena.Discard(r) }

// Residual holds what a plan operator evaluates besides its own terms: the
// residual filters and the select-list subqueries pinned to it.
type Residual struct {
	Filters    intsets.Fast
	Subqueries intsets.Fast
}

func (m *Memo) add(p Plan, res Residual) PlanRef {
	p.Filters = res.Filters
	p.Subqueries = res.Subqueries
	p.Cost = p.Op.estimateCost(&m.cost, &p)
	return m.arena.add(p)
}

// NewSeqScan builds a sequential scan of the node.
func (m *Memo) NewSeqScan(n joingraph.NodeID, res Residual) PlanRef {
	node := &m.g.Nodes[n]
	return m.add(Plan{
		Kind:  ScanKind,
		Nodes: intsets.MakeFast(n),
		Card:  m.g.ScanCardinality(n, res.Filters),
		Width: node.Width,
		Order: joingraph.NoEqClass,
		Op:    &Scan{Method: SeqScan, Node: n},
	}, res)
}

// NewIndexScan builds a scan of the index entry bounded by the key range
// terms. The scan is correlated when a key range term reaches other nodes.
func (m *Memo) NewIndexScan(
	e *joingraph.IndexEntry, keyRange intsets.Fast, prefix int, keyFilter intsets.Fast, res Residual,
) PlanRef {
	n := e.Node
	node := intsets.MakeFast(n)
	correlated := false
	keyRange.ForEach(func(id int) {
		if !m.g.Terms[id].Scope.SubsetOf(node) {
			correlated = true
		}
	})
	all := keyRange.Union(keyFilter)
	all.UnionWith(res.Filters)
	order := joingraph.NoEqClass
	if e.ProvidesOrder() {
		order = e.Order
	}
	return m.add(Plan{
		Kind:  ScanKind,
		Nodes: node,
		Card:  m.g.ScanCardinality(n, all),
		Width: m.g.Nodes[n].Width,
		Order: order,
		Op: &Scan{
			Method:     IndexScan,
			Node:       n,
			Index:      e,
			KeyRange:   keyRange,
			KeyPrefix:  prefix,
			KeyFilter:  keyFilter,
			Correlated: correlated,
		},
	}, res)
}

// NewSort builds a sort of the input on the equivalence class. multi is set
// when the sort key has more than one column.
func (m *Memo) NewSort(
	input PlanRef, purpose SortPurpose, order joingraph.EqClassID, multi bool,
) PlanRef {
	in := m.Plan(input)
	top := in.Top
	switch purpose {
	case SortGroupBy:
		top |= GroupByDone
	case SortOrderBy:
		top |= OrderByDone
	case SortDistinct:
		top |= DistinctDone
	}
	return m.add(Plan{
		Kind:  SortKind,
		Nodes: in.Nodes,
		Card:  in.Card,
		Width: in.Width,
		Order: order,
		Top:   top,
		Op:    &Sort{Input: input, Purpose: purpose, Multi: multi},
	}, Residual{})
}

// JoinSpec describes a join to build.
type JoinSpec struct {
	Method   JoinMethod
	Outer    PlanRef
	Inner    PlanRef
	JoinType qtree.JoinType

	JoinTerms   intsets.Fast
	DuringTerms intsets.Fast
	AfterTerms  intsets.Fast
	DupTerms    intsets.Fast

	// MergeTerm is required by merge joins.
	MergeTerm joingraph.TermID

	Residual
}

// NewJoin builds a join. Nested loop, index and cartesian joins keep the
// order of the outer input; a merge join is ordered on the class of its
// merge term.
func (m *Memo) NewJoin(spec JoinSpec) PlanRef {
	outer, inner := m.Plan(spec.Outer), m.Plan(spec.Inner)
	if outer.Nodes.Intersects(inner.Nodes) {
		panic(errors.AssertionFailedf("join inputs overlap: %s and %s", outer.Nodes, inner.Nodes))
	}
	nodes := outer.Nodes.Union(inner.Nodes)
	order := outer.Order
	mergeTerm := -1
	if spec.Method == MergeJoin {
		mergeTerm = spec.MergeTerm
		order = m.g.Terms[mergeTerm].EqClass
	}
	return m.add(Plan{
		Kind:  JoinKind,
		Nodes: nodes,
		Card:  m.g.Cardinality(nodes),
		Width: outer.Width + inner.Width,
		Order: order,
		Op: &Join{
			Method:      spec.Method,
			Outer:       spec.Outer,
			Inner:       spec.Inner,
			JoinType:    spec.JoinType,
			JoinTerms:   spec.JoinTerms,
			DuringTerms: spec.DuringTerms,
			AfterTerms:  spec.AfterTerms,
			DupTerms:    spec.DupTerms,
			MergeTerm:   mergeTerm,
		},
	}, spec.Residual)
}

// NewFollow builds a follow of the path term from the input to its target.
func (m *Memo) NewFollow(input PlanRef, term joingraph.TermID, res Residual) PlanRef {
	in := m.Plan(input)
	target := m.g.Terms[term].Target
	nodes := in.Nodes.Copy()
	nodes.Add(target)
	return m.add(Plan{
		Kind:  FollowKind,
		Nodes: nodes,
		Card:  m.g.Cardinality(nodes),
		Width: in.Width + m.g.Nodes[target].Width,
		Order: in.Order,
		Op:    &Follow{Input: input, Term: term},
	}, res)
}

// Worst builds the placeholder plan for the nodes. It has infinite cost.
func (m *Memo) Worst(nodes intsets.Fast) PlanRef {
	return m.add(Plan{
		Kind:  WorstKind,
		Nodes: nodes,
		Card:  m.g.Cardinality(nodes),
		Width: m.g.Width(nodes),
		Order: joingraph.NoEqClass,
		Op:    &Worst{},
	}, Residual{})
}
