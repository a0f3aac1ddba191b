// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/cockroachdb/qplan/pkg/util/log"
)

// scopedTerms returns the terms whose scope is within nodes but not within
// done. The same rule places free subqueries.
func (o *Optimizer) scopedTerms(nodes, done intsets.Fast) (terms, subqueries intsets.Fast) {
	g := o.g
	for i := range g.Terms {
		if s := g.Terms[i].Scope; s.SubsetOf(nodes) && (done.Empty() || !s.SubsetOf(done)) {
			terms.Add(i)
		}
	}
	for i := range g.Subqueries {
		sq := &g.Subqueries[i]
		if !sq.Free() {
			continue
		}
		if s := sq.Scope; s.SubsetOf(nodes) && (done.Empty() || !s.SubsetOf(done)) {
			subqueries.Add(i)
		}
	}
	return terms, subqueries
}

// scanInfo returns the Info of the single node, offering it a sequential
// scan and a scan of every usable index the first time.
func (o *Optimizer) scanInfo(n joingraph.NodeID) *Info {
	single := intsets.MakeFast(n)
	info := o.infos.LookupOrCreate(single)
	if info.Offered > 0 {
		return info
	}
	terms, subqueries := o.scopedTerms(single, intsets.Fast{})
	o.infos.Offer(info, o.mem.NewSeqScan(n, memo.Residual{Filters: terms, Subqueries: subqueries}))
	for _, e := range o.g.Nodes[n].Indexes {
		keyRange, prefix := e.KeyRange(terms, intsets.Fast{})
		if keyRange.Empty() && !e.ProvidesOrder() && !e.Force {
			continue
		}
		keyFilter := e.KeyFilter(o.g, terms, keyRange)
		filters := terms.Difference(keyRange)
		filters.DifferenceWith(keyFilter)
		o.infos.Offer(info, o.mem.NewIndexScan(e, keyRange, prefix, keyFilter,
			memo.Residual{Filters: filters, Subqueries: subqueries}))
	}
	if info.Empty() {
		log.VEventf(o.ctx, 2, "no usable scan of %s", o.g.Nodes[n].Alias)
	}
	return info
}

// boundary holds the terms first evaluated when a node is joined to a set
// of nodes.
type boundary struct {
	join   intsets.Fast
	during intsets.Fast
	after  intsets.Fast
	// dup holds the transitive terms implied by the other join terms.
	dup        intsets.Fast
	subqueries intsets.Fast

	// paths holds the path terms leading from the set to the node.
	paths []joingraph.TermID
	// merge holds one mergeable term per equivalence class.
	merge []joingraph.TermID
}

func (b *boundary) conditions() bool {
	return !b.join.Empty() || !b.during.Empty() || !b.after.Empty()
}

// makeBoundary classifies the terms that become evaluable when n is joined
// to visited.
func (o *Optimizer) makeBoundary(visited intsets.Fast, n joingraph.NodeID) boundary {
	g := o.g
	single := intsets.MakeFast(n)
	nodes := visited.Union(single)
	terms, subqueries := o.scopedTerms(nodes, visited)
	// Terms and subqueries of the node alone are evaluated by its scans.
	b := boundary{}
	subqueries.ForEach(func(id int) {
		if !g.Subqueries[id].Scope.SubsetOf(single) {
			b.subqueries.Add(id)
		}
	})
	terms.ForEach(func(id int) {
		t := &g.Terms[id]
		if t.Scope.SubsetOf(single) {
			return
		}
		switch t.Class {
		case joingraph.DuringJoinTerm:
			b.during.Add(id)
		case joingraph.AfterJoinTerm:
			b.after.Add(id)
		default:
			b.join.Add(id)
		}
	})
	// A transitive term adds nothing when a written term of its class joins
	// the same nodes; only one transitive term per class is evaluated
	// otherwise.
	written := make(map[joingraph.EqClassID]bool)
	b.join.ForEach(func(id int) {
		if t := &g.Terms[id]; !t.Transitive && t.Mergeable {
			written[t.EqClass] = true
		}
	})
	kept := make(map[joingraph.EqClassID]bool)
	b.join.ForEach(func(id int) {
		t := &g.Terms[id]
		if !t.Transitive {
			return
		}
		if written[t.EqClass] || kept[t.EqClass] {
			b.dup.Add(id)
			return
		}
		kept[t.EqClass] = true
	})
	b.join.DifferenceWith(b.dup)

	merged := make(map[joingraph.EqClassID]bool)
	b.join.ForEach(func(id int) {
		t := &g.Terms[id]
		if t.Class == joingraph.PathTerm && t.Target == n && visited.Contains(t.Head) {
			b.paths = append(b.paths, id)
		}
		if t.Mergeable && t.EqClass != joingraph.NoEqClass && !merged[t.EqClass] {
			merged[t.EqClass] = true
			b.merge = append(b.merge, id)
		}
	})
	return b
}

// join offers to the Info of visited ∪ {n} the plans joining n to every
// retained plan of outer, and returns that Info.
func (o *Optimizer) join(outer *Info, n joingraph.NodeID) *Info {
	node := &o.g.Nodes[n]
	target := o.infos.LookupOrCreate(outer.Nodes.Union(intsets.MakeFast(n)))
	inner := o.scanInfo(n)
	if inner.Empty() {
		return target
	}
	b := o.makeBoundary(outer.Nodes, n)
	outerPlans := outer.Plans()

	if node.JoinType != qtree.FullJoin {
		if node.Hint == 0 && node.JoinType == qtree.InnerJoin {
			o.followJoins(target, outerPlans, n, &b)
		}
		if node.Hint.Allows(qtree.HintIndexJoin) {
			o.indexJoins(target, outerPlans, n, &b)
		}
		if node.Hint.Allows(qtree.HintNestedLoop) {
			o.nestedLoopJoins(target, outerPlans, inner, n, &b)
		}
	}
	if node.Hint.Allows(qtree.HintMerge) {
		o.mergeJoins(target, outer, inner, n, &b)
	}
	return target
}

func (o *Optimizer) joinSpec(
	method memo.JoinMethod, outer, inner memo.PlanRef, n joingraph.NodeID, b *boundary,
) memo.JoinSpec {
	return memo.JoinSpec{
		Method:      method,
		Outer:       outer,
		Inner:       inner,
		JoinType:    o.g.Nodes[n].JoinType,
		JoinTerms:   b.join,
		DuringTerms: b.during,
		AfterTerms:  b.after,
		DupTerms:    b.dup,
		Residual:    memo.Residual{Subqueries: b.subqueries},
	}
}

// followJoins navigates every path term from the outer plans to the node.
// The node's own terms and the other boundary terms, implied ones included,
// are checked on the followed rows.
func (o *Optimizer) followJoins(
	target *Info, outerPlans []memo.PlanRef, n joingraph.NodeID, b *boundary,
) {
	scanTerms, scanSubqueries := o.scopedTerms(intsets.MakeFast(n), intsets.Fast{})
	for _, t := range b.paths {
		filters := b.join.Union(b.during)
		filters.UnionWith(b.after)
		filters.UnionWith(b.dup)
		filters.UnionWith(scanTerms)
		filters.Remove(t)
		res := memo.Residual{Filters: filters, Subqueries: b.subqueries.Union(scanSubqueries)}
		for _, r := range outerPlans {
			o.infos.Offer(target, o.mem.NewFollow(r, t, res))
		}
	}
}

// indexJoins probes every index of the node whose key range can be bound by
// a join term, once per outer row.
func (o *Optimizer) indexJoins(target *Info, outerPlans []memo.PlanRef, n joingraph.NodeID, b *boundary) {
	g := o.g
	scanTerms, scanSubqueries := o.scopedTerms(intsets.MakeFast(n), intsets.Fast{})
	avail := scanTerms.Union(b.join)
	for _, e := range g.Nodes[n].Indexes {
		if e.Exclude {
			continue
		}
		keyRange, prefix := e.KeyRange(avail, b.join)
		if !keyRange.Intersects(b.join) {
			continue
		}
		keyFilter := e.KeyFilter(g, scanTerms, keyRange)
		filters := scanTerms.Difference(keyRange)
		filters.DifferenceWith(keyFilter)
		spec := o.joinSpec(memo.IndexJoin, memo.PlanRef{}, memo.PlanRef{}, n, b)
		spec.JoinTerms = b.join.Difference(keyRange)
		for _, r := range outerPlans {
			if o.mem.Plan(r).Card > o.params.indexJoinMaxOuter {
				continue
			}
			spec.Outer = r
			spec.Inner = o.mem.NewIndexScan(e, keyRange, prefix, keyFilter,
				memo.Residual{Filters: filters, Subqueries: scanSubqueries})
			o.infos.Offer(target, o.mem.NewJoin(spec))
		}
	}
}

// nestedLoopJoins rescans the cheapest inner plan for every outer plan. A
// join with no condition is a cartesian product.
func (o *Optimizer) nestedLoopJoins(
	target *Info, outerPlans []memo.PlanRef, inner *Info, n joingraph.NodeID, b *boundary,
) {
	method := memo.NestedLoopJoin
	if !b.conditions() {
		method = memo.CartesianJoin
	}
	for _, r := range outerPlans {
		in := o.bestInner(inner, o.mem.Plan(r).Card)
		o.infos.Offer(target, o.mem.NewJoin(o.joinSpec(method, r, in, n, b)))
	}
}

// bestInner returns the plan of the Info that is cheapest when run once
// and then rescanned for every outer row.
func (o *Optimizer) bestInner(info *Info, outerCard float64) memo.PlanRef {
	var best memo.PlanRef
	bestCost := 0.0
	for _, r := range info.Plans() {
		c := o.mem.Plan(r).Cost
		if total := c.Fixed() + outerCard*c.Var(); best.IsNil() || total < bestCost {
			best, bestCost = r, total
		}
	}
	return best
}

// mergeJoins merges the outer and inner inputs on every mergeable class of
// the boundary, sorting an input that is not already ordered on it.
func (o *Optimizer) mergeJoins(target, outer, inner *Info, n joingraph.NodeID, b *boundary) {
	for _, t := range b.merge {
		e := o.g.Terms[t].EqClass
		outerRef, ok := o.sorted(outer, e)
		if !ok {
			continue
		}
		innerRef, _ := o.sorted(inner, e)
		spec := o.joinSpec(memo.MergeJoin, outerRef, innerRef, n, b)
		spec.MergeTerm = t
		o.infos.Offer(target, o.mem.NewJoin(spec))
	}
}

// sorted returns the best plan of the Info ordered on e, adding a sort to
// the best plan when none is.
func (o *Optimizer) sorted(info *Info, e joingraph.EqClassID) (memo.PlanRef, bool) {
	if r, ok := o.infos.BestOrdered(info, e); ok {
		return r, true
	}
	r, ok := o.infos.Best(info)
	if !ok {
		return r, false
	}
	return o.mem.NewSort(r, memo.SortTemp, e, false), true
}
