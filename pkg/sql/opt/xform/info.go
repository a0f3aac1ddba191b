// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/google/btree"
)

// Info collects the plans found for one set of nodes. Every plan of an Info
// produces the same rows; they differ in cost and output order.
type Info struct {
	Nodes intsets.Fast
	Card  float64

	// single is set for an Info over one node, which keeps every candidate
	// scan instead of a bounded set.
	single bool

	// unordered holds up to K plans that are pairwise incomparable, whatever
	// their order.
	unordered []memo.PlanRef

	// ordered holds the best plan per output order.
	ordered []orderedSlot

	// expanded is set once the search has joined every legal node to this
	// set.
	expanded bool

	detached bool
	// BestCost is the cost of the best plan seen, kept after detaching.
	BestCost memo.Cost
	Offered  int
	Retained int
}

type orderedSlot struct {
	order joingraph.EqClassID
	plan  memo.PlanRef
}

// Empty returns true if the Info retains no plan.
func (i *Info) Empty() bool {
	return len(i.unordered) == 0 && len(i.ordered) == 0
}

// Detached returns true once the plans of the Info have been released.
func (i *Info) Detached() bool {
	return i.detached
}

// Plans returns every retained plan, unordered ones first. A plan retained
// both as unordered and ordered is returned once.
func (i *Info) Plans() []memo.PlanRef {
	res := make([]memo.PlanRef, 0, len(i.unordered)+len(i.ordered))
	res = append(res, i.unordered...)
	for _, s := range i.ordered {
		dup := false
		for _, r := range i.unordered {
			dup = dup || r == s.plan
		}
		if !dup {
			res = append(res, s.plan)
		}
	}
	return res
}

// Ordered returns the retained plan with the given order. An Info over a
// single node has no ordered slots; see InfoTable.BestOrdered.
func (i *Info) Ordered(e joingraph.EqClassID) (memo.PlanRef, bool) {
	for _, s := range i.ordered {
		if s.order == e {
			return s.plan, true
		}
	}
	return memo.PlanRef{}, false
}

func (i *Info) setOrdered(e joingraph.EqClassID, r memo.PlanRef) {
	for k := range i.ordered {
		if i.ordered[k].order == e {
			i.ordered[k].plan = r
			return
		}
	}
	i.ordered = append(i.ordered, orderedSlot{order: e, plan: r})
}

// InfoTable maps sets of nodes to their Info. Infos are kept in a btree
// ordered by the size of the set and then by its members, so that every
// iteration is deterministic.
type InfoTable struct {
	mem   *memo.Memo
	k     int
	tree  *btree.BTreeG[*Info]
	stats *Stats
}

func infoLess(a, b *Info) bool {
	if la, lb := a.Nodes.Len(), b.Nodes.Len(); la != lb {
		return la < lb
	}
	return a.Nodes.Compare(b.Nodes) < 0
}

// NewInfoTable returns an empty table retaining up to k plans per set.
func NewInfoTable(mem *memo.Memo, k int, stats *Stats) *InfoTable {
	if stats == nil {
		stats = &Stats{}
	}
	return &InfoTable{
		mem:   mem,
		k:     k,
		tree:  btree.NewG[*Info](8, infoLess),
		stats: stats,
	}
}

// Lookup returns the Info of the node set, if any.
func (t *InfoTable) Lookup(nodes intsets.Fast) (*Info, bool) {
	return t.tree.Get(&Info{Nodes: nodes})
}

// LookupOrCreate returns the Info of the node set, creating it if needed.
func (t *InfoTable) LookupOrCreate(nodes intsets.Fast) *Info {
	if info, ok := t.Lookup(nodes); ok {
		return info
	}
	info := &Info{
		Nodes:    nodes.Copy(),
		Card:     t.mem.Graph().Cardinality(nodes),
		single:   nodes.Len() == 1,
		BestCost: memo.MaxCost,
	}
	t.tree.ReplaceOrInsert(info)
	t.stats.InfosCreated++
	return info
}

// Len returns the number of Infos.
func (t *InfoTable) Len() int {
	return t.tree.Len()
}

// ForEach calls fn for every Info in order.
func (t *InfoTable) ForEach(fn func(*Info)) {
	t.tree.Ascend(func(info *Info) bool {
		fn(info)
		return true
	})
}

// Best returns the cheapest retained plan.
func (t *InfoTable) Best(info *Info) (memo.PlanRef, bool) {
	var best memo.PlanRef
	bestCost := memo.MaxCost
	for _, r := range info.Plans() {
		if c := t.mem.Plan(r).Cost; best.IsNil() || c.Total() < bestCost.Total() {
			best, bestCost = r, c
		}
	}
	return best, !best.IsNil()
}

// BestOrdered returns the cheapest retained plan with the given order.
func (t *InfoTable) BestOrdered(info *Info, e joingraph.EqClassID) (memo.PlanRef, bool) {
	if !info.single {
		return info.Ordered(e)
	}
	var best memo.PlanRef
	for _, r := range info.unordered {
		p := t.mem.Plan(r)
		if p.Order != e {
			continue
		}
		if best.IsNil() || p.Cost.Total() < t.mem.Plan(best).Cost.Total() {
			best = r
		}
	}
	return best, !best.IsNil()
}

// Offer proposes a plan for the Info. It returns true if the plan is
// retained; a rejected plan is freed. A plan with infinite cost is never
// retained.
func (t *InfoTable) Offer(info *Info, cand memo.PlanRef) bool {
	// A detached Info is idle and becomes active again.
	info.detached = false
	p := t.mem.Plan(cand)
	if !p.Nodes.Equals(info.Nodes) {
		panic(errors.AssertionFailedf("plan over %s offered to info %s", p.Nodes, info.Nodes))
	}
	t.stats.PlansOffered++
	info.Offered++
	if p.Cost.IsInfinite() {
		t.reject(cand)
		return false
	}
	cost, order := p.Cost, p.Order

	var retained bool
	if info.single {
		t.retain(info, cand)
		info.unordered = append(info.unordered, cand)
		retained = true
	} else {
		if order != joingraph.NoEqClass {
			retained = t.offerOrdered(info, order, cand)
		}
		if t.offerUnordered(info, cand) {
			retained = true
			if order == joingraph.NoEqClass {
				t.addSortedVariants(info, cand)
			}
		}
	}
	if !retained {
		t.reject(cand)
		return false
	}
	if cost.Total() < info.BestCost.Total() {
		info.BestCost = cost
	}
	t.stats.PlansRetained++
	return true
}

func (t *InfoTable) retain(info *Info, r memo.PlanRef) {
	t.mem.Retain(r)
	info.Retained++
}

func (t *InfoTable) reject(r memo.PlanRef) {
	t.stats.PlansRejected++
	t.mem.Discard(r)
}

// offerUnordered applies the bounded accept rule: a dominated candidate is
// rejected, plans it dominates are evicted, and when the set is full the
// plan with the worst variable cost makes room unless the candidate is
// worse still.
func (t *InfoTable) offerUnordered(info *Info, cand memo.PlanRef) bool {
	for _, r := range info.unordered {
		switch t.mem.Compare(cand, r) {
		case memo.Less:
			return false
		case memo.Equal:
			if !t.mem.PreferOnTie(cand, r) {
				return false
			}
		}
	}
	kept := info.unordered[:0]
	for _, r := range info.unordered {
		c := t.mem.Compare(cand, r)
		if c == memo.Greater || c == memo.Equal {
			t.mem.Release(r)
			continue
		}
		kept = append(kept, r)
	}
	evicted := len(kept) < len(info.unordered)
	info.unordered = kept
	if !evicted && len(info.unordered) >= t.k {
		worst := 0
		for i, r := range info.unordered {
			if t.worse(r, info.unordered[worst]) {
				worst = i
			}
		}
		if !t.worse(info.unordered[worst], cand) {
			return false
		}
		t.mem.Release(info.unordered[worst])
		info.unordered = append(info.unordered[:worst], info.unordered[worst+1:]...)
	}
	t.retain(info, cand)
	info.unordered = append(info.unordered, cand)
	return true
}

// worse orders plans by variable cost, then by total cost.
func (t *InfoTable) worse(a, b memo.PlanRef) bool {
	ca, cb := t.mem.Plan(a).Cost, t.mem.Plan(b).Cost
	if ca.Var() != cb.Var() {
		return ca.Var() > cb.Var()
	}
	return ca.Total() > cb.Total()
}

// offerOrdered keeps the candidate as the plan of its order if it dominates
// the current one, or if neither dominates and it is cheaper overall.
func (t *InfoTable) offerOrdered(info *Info, order joingraph.EqClassID, cand memo.PlanRef) bool {
	cur, ok := info.Ordered(order)
	if ok {
		switch t.mem.Compare(cand, cur) {
		case memo.Less:
			return false
		case memo.Equal:
			if !t.mem.PreferOnTie(cand, cur) {
				return false
			}
		case memo.Incomparable:
			if t.mem.Plan(cand).Cost.Total() >= t.mem.Plan(cur).Cost.Total() {
				return false
			}
		}
		t.mem.Release(cur)
	}
	t.retain(info, cand)
	info.setOrdered(order, cand)
	return true
}

// addSortedVariants offers a sorted copy of a newly retained unordered plan
// for every order that may be useful to later joins, when that plan is the
// cheapest unordered one.
func (t *InfoTable) addSortedVariants(info *Info, r memo.PlanRef) {
	total := t.mem.Plan(r).Cost.Total()
	for _, o := range info.unordered {
		if t.mem.Plan(o).Cost.Total() < total {
			return
		}
	}
	g := t.mem.Graph()
	g.InterestingOrders(info.Nodes).ForEach(func(e int) {
		sorted := t.mem.NewSort(r, memo.SortTemp, e, false)
		t.stats.PlansOffered++
		info.Offered++
		if t.offerOrdered(info, e, sorted) {
			t.stats.PlansRetained++
		} else {
			t.reject(sorted)
		}
	})
}

// Detach releases every plan of the Info. The Info keeps its cardinality
// and best cost.
func (t *InfoTable) Detach(info *Info) {
	if info.detached {
		return
	}
	for _, r := range info.unordered {
		t.mem.Release(r)
	}
	for _, s := range info.ordered {
		t.mem.Release(s.plan)
	}
	info.unordered = nil
	info.ordered = nil
	info.detached = true
}

// DetachAll detaches every Info.
func (t *InfoTable) DetachAll() {
	t.ForEach(t.Detach)
}

// refs returns the references held on plans by the Infos.
func (t *InfoTable) refs() map[memo.PlanRef]int {
	res := make(map[memo.PlanRef]int)
	t.ForEach(func(info *Info) {
		for _, r := range info.unordered {
			res[r]++
		}
		for _, s := range info.ordered {
			res[s.plan]++
		}
	})
	return res
}
