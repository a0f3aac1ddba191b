// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/ordering"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/cockroachdb/qplan/pkg/util/log"
)

// partitionOrder returns the partitions in an order where every partition
// follows the ones it depends on. Ties go to the lowest partition.
func (o *Optimizer) partitionOrder() []int {
	g := o.g
	var order []int
	var done, placed intsets.Fast
	for len(order) < len(g.Partitions) {
		next := -1
		for i := range g.Partitions {
			if !placed.Contains(i) && g.Partitions[i].Deps.SubsetOf(done) {
				next = i
				break
			}
		}
		if next < 0 {
			// Dependencies are acyclic once the graph is built; place the
			// lowest remaining partition.
			next, _ = intsets.MakeFastRange(0, len(g.Partitions)).Difference(placed).First()
		}
		placed.Add(next)
		done.UnionWith(g.Partitions[next].Nodes)
		order = append(order, next)
	}
	return order
}

// combine joins the partitions with cartesian products, starting from every
// retained plan of the first one, and applies the GROUP BY, DISTINCT and
// ORDER BY clauses. It returns the cheapest result.
func (o *Optimizer) combine() (memo.PlanRef, bool) {
	g := o.g
	var plans []memo.PlanRef
	var done intsets.Fast
	for i, pi := range o.partitionOrder() {
		part := &g.Partitions[pi]
		info, ok := o.infos.Lookup(part.Nodes)
		if !ok || info.Empty() {
			o.discard(plans)
			return memo.PlanRef{}, false
		}
		if i == 0 {
			plans = info.Plans()
			done = part.Nodes.Copy()
			continue
		}

		nodes := done.Union(part.Nodes)
		terms, subqueries := o.scopedTerms(nodes, done)
		// Terms within the partition were placed by its own search.
		partTerms, partSubqueries := o.scopedTerms(part.Nodes, intsets.Fast{})
		terms.DifferenceWith(partTerms)
		subqueries.DifferenceWith(partSubqueries)
		spec := memo.JoinSpec{
			Method:   memo.CartesianJoin,
			JoinType: g.Nodes[firstNode(part.Nodes)].JoinType,
			Residual: memo.Residual{Subqueries: subqueries},
		}
		terms.ForEach(func(id int) {
			t := &g.Terms[id]
			switch t.Class {
			case joingraph.DuringJoinTerm:
				spec.DuringTerms.Add(id)
			case joingraph.AfterJoinTerm:
				spec.AfterTerms.Add(id)
			default:
				spec.Filters.Add(id)
			}
		})
		next := make([]memo.PlanRef, 0, len(plans))
		for _, r := range plans {
			spec.Outer = r
			spec.Inner = o.bestInner(info, o.mem.Plan(r).Card)
			next = append(next, o.mem.NewJoin(spec))
		}
		plans = next
		done = nodes
	}

	var best memo.PlanRef
	var finished []memo.PlanRef
	for _, r := range plans {
		f := o.finish(r)
		finished = append(finished, f)
		if best.IsNil() || o.mem.Plan(f).Cost.Total() < o.mem.Plan(best).Cost.Total() {
			best = f
		}
	}
	for _, f := range finished {
		if f != best {
			o.mem.Discard(f)
		}
	}
	if best.IsNil() || o.mem.Plan(best).Cost.IsInfinite() {
		o.mem.Discard(best)
		return memo.PlanRef{}, false
	}
	return best, true
}

func firstNode(nodes intsets.Fast) joingraph.NodeID {
	n, _ := nodes.First()
	return n
}

func (o *Optimizer) discard(plans []memo.PlanRef) {
	for _, r := range plans {
		o.mem.Discard(r)
	}
}

// finish adds the sorts required by the GROUP BY, DISTINCT and ORDER BY
// clauses on top of a plan covering every node. A sort is skipped when the
// plan already provides the ordering.
func (o *Optimizer) finish(r memo.PlanRef) memo.PlanRef {
	g := o.g
	if g.HasGroupBy && !ordering.CanSkipSort(o.mem, r, g.GroupBy, g.GroupByMulti) {
		r = o.mem.NewSort(r, memo.SortGroupBy, g.GroupBy, g.GroupByMulti)
	}
	if g.Distinct {
		order := joingraph.NoEqClass
		if g.HasOrderBy && !g.OrderByMulti {
			order = g.OrderBy
		}
		r = o.mem.NewSort(r, memo.SortDistinct, order, true)
	}
	if g.HasOrderBy && !ordering.CanSkipSort(o.mem, r, g.OrderBy, g.OrderByMulti) {
		r = o.mem.NewSort(r, memo.SortOrderBy, g.OrderBy, g.OrderByMulti)
	} else if g.HasOrderBy {
		log.VEventf(o.ctx, 2, "plan already ordered for ORDER BY")
	}
	return r
}
