// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"math"

	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
)

// CPUWeight is the cost of processing one row, relative to reading a page.
var CPUWeight = settings.RegisterFloatSetting(
	"sql.optimizer.cost.cpu_weight",
	"cost of processing one row, relative to reading one page",
	0.0025,
	settings.NonNegativeFloat,
)

// BufferPages is the number of pages the buffer pool can hold.
var BufferPages = settings.RegisterFloatSetting(
	"sql.optimizer.cost.buffer_pages",
	"number of pages held by the buffer pool",
	1000,
	settings.PositiveFloat,
)

// SortBufferPages is the number of pages an in-memory sort can use.
var SortBufferPages = settings.RegisterFloatSetting(
	"sql.optimizer.cost.sort_buffer_pages",
	"number of pages available to an in-memory sort",
	16,
	settings.PositiveFloat,
)

// PageSize is the size of a page in bytes.
var PageSize = settings.RegisterIntSetting(
	"sql.optimizer.cost.page_size",
	"size of a page in bytes",
	16384,
	settings.PositiveInt,
)

// SortSetup is the fixed cost of starting a sort.
var SortSetup = settings.RegisterFloatSetting(
	"sql.optimizer.cost.sort_setup",
	"fixed cost of starting a sort",
	1,
	settings.NonNegativeFloat,
)

// OuterJoinRowPenalty is the extra cost per outer row of an outer join.
var OuterJoinRowPenalty = settings.RegisterFloatSetting(
	"sql.optimizer.cost.outer_join_row_penalty",
	"extra cost per outer row of an outer join",
	0.0025,
	settings.NonNegativeFloat,
)

// CostParams holds the cost model parameters of one optimization run.
type CostParams struct {
	CPUWeight           float64
	BufferPages         float64
	SortBufferPages     float64
	PageSize            float64
	SortSetup           float64
	OuterJoinRowPenalty float64
}

// MakeCostParams reads the cost model parameters from the settings. A nil
// sv yields the defaults.
func MakeCostParams(sv *settings.Values) CostParams {
	return CostParams{
		CPUWeight:           CPUWeight.Get(sv),
		BufferPages:         BufferPages.Get(sv),
		SortBufferPages:     SortBufferPages.Get(sv),
		PageSize:            float64(PageSize.Get(sv)),
		SortSetup:           SortSetup.Get(sv),
		OuterJoinRowPenalty: OuterJoinRowPenalty.Get(sv),
	}
}

// coster computes plan costs. Every formula only looks at the plan being
// costed and the already computed costs of its inputs.
type coster struct {
	mem *Memo
	p   CostParams
}

func (c *coster) graph() *joingraph.Graph {
	return c.mem.g
}

// pages returns the number of pages needed to hold the rows.
func (c *coster) pages(card float64, width int) float64 {
	return math.Max(1, math.Ceil(card*float64(width)/c.p.PageSize))
}

// heapFraction maps the fraction of rows fetched through an index to the
// fraction of heap pages read.
var heapFraction = [...]struct{ sel, pages float64 }{
	{0, 0},
	{0.05, 0.25},
	{0.2, 0.6},
	{0.5, 0.9},
	{0.8, 1},
	{1, 1},
}

func pageFraction(sel float64) float64 {
	if sel <= 0 {
		return 0
	}
	for i := 1; i < len(heapFraction); i++ {
		lo, hi := heapFraction[i-1], heapFraction[i]
		if sel <= hi.sel {
			return lo.pages + (sel-lo.sel)*(hi.pages-lo.pages)/(hi.sel-lo.sel)
		}
	}
	return 1
}

func (s *Scan) estimateCost(c *coster, p *Plan) Cost {
	node := &c.graph().Nodes[s.Node]
	if s.Method == SeqScan {
		return Cost{
			VarCPU: node.Card * c.p.CPUWeight,
			VarIO:  node.Pages,
		}
	}
	e := s.Index
	if e.Exclude {
		return MaxCost
	}
	if e.Force {
		return Cost{}
	}
	sel := 1.0
	if !s.KeyRange.Empty() {
		sel = c.graph().CombinedSelectivity(s.KeyRange)
		if d := e.Stats.DistinctKeys(s.KeyPrefix); d > 0 {
			sel = math.Max(sel, 1/d)
		}
	}
	fetched := sel
	if !s.KeyFilter.Empty() {
		fetched *= c.graph().CombinedSelectivity(s.KeyFilter)
	}
	heap := node.Pages * pageFraction(fetched)
	indexIO := float64(e.Stats.Height) + e.Stats.LeafPages*sel
	if heap > c.p.BufferPages {
		// The heap scan dominates and leaf pages are read in key order; only
		// the descent is charged.
		indexIO = float64(e.Stats.Height)
	}
	return Cost{
		FixedIO: indexIO,
		VarCPU:  node.Card * sel * c.p.CPUWeight,
		VarIO:   heap,
	}
}

func (s *Sort) estimateCost(c *coster, p *Plan) Cost {
	in := c.mem.Plan(s.Input)
	if in.Cost.IsInfinite() {
		return MaxCost
	}
	if in.Kind == SortKind && in.Order == p.Order && !s.Multi {
		// The input is already a sort on the same class.
		return in.Cost
	}
	pages := c.pages(in.Card, in.Width)
	cost := Cost{
		FixedCPU: in.Cost.CPU() + c.p.SortSetup,
		FixedIO:  in.Cost.IO(),
		VarCPU:   in.Card * c.p.CPUWeight,
		VarIO:    pages,
	}
	if p.Order != joingraph.NoEqClass && p.Order == in.Order && !s.Multi {
		return cost
	}
	n := math.Max(in.Card, 1)
	cost.FixedCPU += n * math.Log2(n) * c.p.CPUWeight
	if pages > c.p.SortBufferPages {
		runs := pages / c.p.SortBufferPages
		fanIn := math.Max(c.p.SortBufferPages-1, 2)
		passes := math.Max(1, math.Ceil(math.Log(runs)/math.Log(fanIn)))
		io := 2 * pages * passes
		io *= 1 - 0.5*math.Min(1, c.p.BufferPages/pages)
		cost.FixedIO += io
	}
	return cost
}

func (j *Join) estimateCost(c *coster, p *Plan) Cost {
	outer, inner := c.mem.Plan(j.Outer), c.mem.Plan(j.Inner)
	if outer.Cost.IsInfinite() || inner.Cost.IsInfinite() {
		return MaxCost
	}
	var cost Cost
	switch j.Method {
	case NestedLoopJoin, CartesianJoin:
		cost = c.nestedLoopCost(j, outer, inner)
	case IndexJoin:
		cost = c.indexJoinCost(outer, inner)
	case MergeJoin:
		cost = c.mergeJoinCost(j, outer, inner)
	}
	if j.JoinType != qtree.InnerJoin {
		cost.VarCPU += outer.Card * c.p.OuterJoinRowPenalty
	}
	return cost
}

// innerPages is the number of pages an inner input occupies once read.
func (c *coster) innerPages(inner *Plan) float64 {
	if inner.Kind == ScanKind {
		return c.graph().Pages(inner.Nodes)
	}
	return c.pages(inner.Card, inner.Width)
}

// nestedLoopCost pays the fixed cost of the inner input once and its
// variable cost for every outer row. Repeated inner reads beyond twice the
// inner size are assumed to hit the buffer pool.
func (c *coster) nestedLoopCost(j *Join, outer, inner *Plan) Cost {
	io := outer.Card * inner.Cost.VarIO
	io = math.Min(io, math.Max(inner.Cost.VarIO, 2*c.innerPages(inner)))
	cost := Cost{
		FixedCPU: outer.Cost.FixedCPU + inner.Cost.FixedCPU,
		FixedIO:  outer.Cost.FixedIO + inner.Cost.FixedIO,
		VarCPU:   outer.Cost.VarCPU + outer.Card*inner.Cost.VarCPU,
		VarIO:    outer.Cost.VarIO + io,
	}
	if !j.JoinTerms.Empty() {
		cost.VarCPU += outer.Card * inner.Card * c.p.CPUWeight
	}
	return cost
}

// indexJoinCost pays the whole cost of the correlated inner index scan for
// every outer row, with the same cap on repeated reads.
func (c *coster) indexJoinCost(outer, inner *Plan) Cost {
	perIO := inner.Cost.IO()
	limit := c.innerPages(inner)
	if s, ok := inner.Op.(*Scan); ok && s.Index != nil {
		limit += s.Index.Stats.TotalPages
	}
	io := math.Min(outer.Card*perIO, math.Max(perIO, 2*limit))
	return Cost{
		FixedCPU: outer.Cost.FixedCPU,
		FixedIO:  outer.Cost.FixedIO,
		VarCPU:   outer.Cost.VarCPU + outer.Card*inner.Cost.CPU(),
		VarIO:    outer.Cost.VarIO + io,
	}
}

// mergeJoinCost reads both ordered inputs fully before producing rows and
// charges CPU for the merge and the matched row pairs.
func (c *coster) mergeJoinCost(j *Join, outer, inner *Plan) Cost {
	sel := c.graph().Terms[j.MergeTerm].Selectivity
	return Cost{
		FixedCPU: outer.Cost.CPU() + inner.Cost.CPU(),
		FixedIO:  outer.Cost.IO() + inner.Cost.IO(),
		VarCPU: (outer.Card+inner.Card)*c.p.CPUWeight +
			outer.Card*inner.Card*sel*c.p.CPUWeight,
	}
}

// estimateCost charges one page miss per followed pointer, scaled by the
// part of the target that does not fit in the buffer pool.
func (f *Follow) estimateCost(c *coster, p *Plan) Cost {
	in := c.mem.Plan(f.Input)
	if in.Cost.IsInfinite() {
		return MaxCost
	}
	g := c.graph()
	target := &g.Nodes[g.Terms[f.Term].Target]
	n := in.Card
	misses := n * (1 - math.Min(1, c.p.BufferPages/target.Pages))
	return Cost{
		FixedCPU: in.Cost.FixedCPU,
		FixedIO:  in.Cost.FixedIO,
		VarCPU:   in.Cost.VarCPU + n*c.p.CPUWeight,
		VarIO:    in.Cost.VarIO + misses,
	}
}

func (w *Worst) estimateCost(c *coster, p *Plan) Cost {
	return MaxCost
}
