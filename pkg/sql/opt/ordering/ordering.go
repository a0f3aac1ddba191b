// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package ordering decides which output orderings a plan provides. A plan
// declares the equivalence class its rows are sorted on; the functions here
// derive that claim from the structure of the plan, so that a declared order
// can be checked instead of trusted.
package ordering

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/util/buildutil"
)

// CanProvide returns true if the rows of the plan are sorted on the
// equivalence class e.
func CanProvide(m *memo.Memo, r memo.PlanRef, e joingraph.EqClassID) bool {
	if e == joingraph.NoEqClass {
		return true
	}
	p := m.Plan(r)
	return funcMap[p.Kind].canProvideOrdering(m, p, e)
}

// CanSkipSort returns true if a top-level sort on e can be omitted because
// the plan already provides that order. A sort on more than one column is
// never skipped.
func CanSkipSort(m *memo.Memo, r memo.PlanRef, e joingraph.EqClassID, multi bool) bool {
	if multi || e == joingraph.NoEqClass {
		return false
	}
	ok := m.Plan(r).Order == e
	if ok && buildutil.Invariants && !CanProvide(m, r, e) {
		panic(errors.AssertionFailedf("plan %s declares order %d it cannot provide", r, e))
	}
	return ok
}

// Check verifies that every plan node of the tree rooted at r provides the
// order it declares.
func Check(m *memo.Memo, r memo.PlanRef) error {
	p := m.Plan(r)
	if p.Order != joingraph.NoEqClass && !CanProvide(m, r, p.Order) {
		return errors.AssertionFailedf(
			"%s declares order %s it cannot provide", p.Op.Describe(m.Graph()), m.FormatEqClass(p.Order))
	}
	for _, c := range p.Op.Children() {
		if err := Check(m, c); err != nil {
			return err
		}
	}
	return nil
}

type funcs struct {
	canProvideOrdering func(m *memo.Memo, p *memo.Plan, e joingraph.EqClassID) bool
}

var funcMap [memo.WorstKind + 1]funcs

func init() {
	funcMap[memo.ScanKind] = funcs{canProvideOrdering: scanCanProvideOrdering}
	funcMap[memo.SortKind] = funcs{canProvideOrdering: sortCanProvideOrdering}
	funcMap[memo.JoinKind] = funcs{canProvideOrdering: joinCanProvideOrdering}
	funcMap[memo.FollowKind] = funcs{canProvideOrdering: followCanProvideOrdering}
	funcMap[memo.WorstKind] = funcs{canProvideOrdering: canNeverProvideOrdering}
}

func canNeverProvideOrdering(*memo.Memo, *memo.Plan, joingraph.EqClassID) bool {
	return false
}

// scanCanProvideOrdering returns true for an index scan whose first key
// column belongs to the class. An excluded index or an index chained across
// a class hierarchy is never read in order.
func scanCanProvideOrdering(m *memo.Memo, p *memo.Plan, e joingraph.EqClassID) bool {
	s := p.Op.(*memo.Scan)
	if s.Method != memo.IndexScan || !s.Index.ProvidesOrder() {
		return false
	}
	return m.Graph().EqClasses[e].Segments.Contains(s.Index.Keys[0])
}

// sortCanProvideOrdering returns true for a sort on the class, or for a
// sort that only materializes an input already in that order.
func sortCanProvideOrdering(m *memo.Memo, p *memo.Plan, e joingraph.EqClassID) bool {
	s := p.Op.(*memo.Sort)
	if p.Order == e {
		return true
	}
	return CanProvide(m, s.Input, e)
}

// joinCanProvideOrdering returns true for a merge join on the class, or for
// a join keeping an outer input that is in that order.
func joinCanProvideOrdering(m *memo.Memo, p *memo.Plan, e joingraph.EqClassID) bool {
	j := p.Op.(*memo.Join)
	if j.Method == memo.MergeJoin {
		g := m.Graph()
		if g.Terms[j.MergeTerm].EqClass != e {
			return false
		}
		return CanProvide(m, j.Outer, e) && CanProvide(m, j.Inner, e)
	}
	return CanProvide(m, j.Outer, e)
}

func followCanProvideOrdering(m *memo.Memo, p *memo.Plan, e joingraph.EqClassID) bool {
	return CanProvide(m, p.Op.(*memo.Follow).Input, e)
}
