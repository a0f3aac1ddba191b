// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package xform searches the join orders and join methods of a query and
// returns its cheapest physical plan. The search works one partition of the
// join graph at a time, memoizing the best plans of every set of nodes in an
// InfoTable, and then combines the partitions and applies the GROUP BY,
// DISTINCT and ORDER BY clauses.
package xform

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/ordering"
	"github.com/cockroachdb/qplan/pkg/util/buildutil"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/cockroachdb/qplan/pkg/util/log"
)

// ErrNoPlan is returned when no feasible plan exists, typically because the
// hints rule out every candidate. The caller is expected to fall back to an
// unoptimized plan.
var ErrNoPlan = errors.New("no feasible plan")

// Stats counts the work done by one optimization run.
type Stats struct {
	InfosCreated  int
	PlansOffered  int
	PlansRetained int
	PlansRejected int
	PlansCreated  int
	PlansLive     int

	ExhaustivePartitions int
	GreedyPartitions     int
	GreedyFallbacks      int
}

// Result is the outcome of an optimization run. The memo keeps the plan
// tree alive; every other plan built during the search has been freed.
type Result struct {
	Memo  *memo.Memo
	Infos *InfoTable
	Plan  memo.PlanRef
	Cost  memo.Cost
	// Order is the equivalence class the result is sorted on, or
	// joingraph.NoEqClass.
	Order joingraph.EqClassID
	Stats Stats
}

// Graph returns the join graph the result was planned for.
func (r *Result) Graph() *joingraph.Graph {
	return r.Memo.Graph()
}

var runCounter atomic.Int64

var stalledSearch = log.Every(10 * time.Second)

// Optimizer holds the state of one optimization run.
type Optimizer struct {
	ctx    context.Context
	g      *joingraph.Graph
	mem    *memo.Memo
	infos  *InfoTable
	params searchParams
	stats  Stats
}

// Optimize finds the cheapest plan for the join graph under the settings
// in sv. A nil sv uses the defaults.
func Optimize(ctx context.Context, g *joingraph.Graph, sv *settings.Values) (_ *Result, err error) {
	ctx = logtags.AddTag(ctx, "opt-run", runCounter.Add(1))
	o := &Optimizer{
		ctx:    ctx,
		g:      g,
		mem:    memo.New(g, sv),
		params: makeSearchParams(sv),
	}
	o.infos = NewInfoTable(o.mem, o.params.plansRetained, &o.stats)

	defer func() {
		if e := opt.CatchOptimizerError(); e != nil {
			err = e
		}
		if err != nil {
			log.VEventf(ctx, 1, "optimization failed: %v", err)
		}
	}()
	return o.optimize()
}

func (o *Optimizer) optimize() (*Result, error) {
	g := o.g
	log.VEventf(o.ctx, 1, "optimizing %d nodes in %d partitions", len(g.Nodes), len(g.Partitions))

	for i := range g.Partitions {
		if err := o.searchPartition(&g.Partitions[i]); err != nil {
			o.infos.DetachAll()
			return nil, err
		}
	}
	final, ok := o.combine()
	if !ok {
		o.infos.DetachAll()
		return nil, errors.Wrapf(ErrNoPlan, "no plan covers all %d tables", len(g.Nodes))
	}
	o.mem.Retain(final)
	o.infos.DetachAll()

	if buildutil.Invariants {
		o.mem.Arena().CheckRefs(map[memo.PlanRef]int{final: 1})
		if err := ordering.Check(o.mem, final); err != nil {
			return nil, err
		}
		if err := checkCoverage(o.mem, final); err != nil {
			return nil, err
		}
	}

	p := o.mem.Plan(final)
	o.stats.PlansCreated = o.mem.Arena().Created()
	o.stats.PlansLive = o.mem.Arena().Live()
	log.VEventf(o.ctx, 1, "chose plan with cost %s; %d infos, %d plans offered, %d retained",
		p.Cost, o.stats.InfosCreated, o.stats.PlansOffered, o.stats.PlansRetained)
	return &Result{
		Memo:  o.mem,
		Infos: o.infos,
		Plan:  final,
		Cost:  p.Cost,
		Order: p.Order,
		Stats: o.stats,
	}, nil
}

// Coverage returns the terms accounted for by the plan tree and the
// subqueries pinned to it. It returns an error if a term or subquery is
// accounted for twice.
func Coverage(m *memo.Memo, r memo.PlanRef) (terms, subqueries intsets.Fast, err error) {
	p := m.Plan(r)
	terms = p.Terms()
	subqueries = p.Subqueries.Copy()
	for _, c := range p.Op.Children() {
		ct, cs, err := Coverage(m, c)
		if err != nil {
			return terms, subqueries, err
		}
		if ct.Intersects(terms) {
			return terms, subqueries, errors.AssertionFailedf(
				"terms %s accounted for twice", ct.Intersection(terms))
		}
		if cs.Intersects(subqueries) {
			return terms, subqueries, errors.AssertionFailedf(
				"subqueries %s evaluated twice", cs.Intersection(subqueries))
		}
		terms.UnionWith(ct)
		subqueries.UnionWith(cs)
	}
	return terms, subqueries, nil
}

// checkCoverage verifies that the plan accounts for every term exactly once
// and evaluates every select-list subquery exactly once.
func checkCoverage(m *memo.Memo, r memo.PlanRef) error {
	terms, subqueries, err := Coverage(m, r)
	if err != nil {
		return err
	}
	g := m.Graph()
	if all := g.AllTerms(); !terms.Equals(all) {
		return errors.AssertionFailedf("plan accounts for terms %s, expected %s", terms, all)
	}
	var free intsets.Fast
	for i := range g.Subqueries {
		if g.Subqueries[i].Free() {
			free.Add(i)
		}
	}
	if !subqueries.Equals(free) {
		return errors.AssertionFailedf("plan evaluates subqueries %s, expected %s", subqueries, free)
	}
	return nil
}
