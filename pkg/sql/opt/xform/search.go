// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/cockroachdb/qplan/pkg/util/log"
)

// partitionSearch enumerates the join orders of one partition.
type partitionSearch struct {
	o    *Optimizer
	ctx  context.Context
	part *joingraph.Partition

	// pruned is set when firstNodes dropped dominated nodes; unpruned
	// disables the dropping.
	pruned   bool
	unpruned bool
}

// searchPartition fills the Info of the partition's node set with its best
// plans. Infos of the partition's proper subsets are detached afterwards.
func (o *Optimizer) searchPartition(part *joingraph.Partition) error {
	s := partitionSearch{
		o:    o,
		ctx:  logtags.AddTag(o.ctx, "partition", part.ID),
		part: part,
	}
	part.Nodes.ForEach(func(n int) {
		o.scanInfo(n)
	})

	size := part.Nodes.Len()
	switch {
	case size == 1:
	case size <= o.params.tablesTogether || o.g.Ordered || s.hasPathTerm():
		o.stats.ExhaustivePartitions++
		log.VEventf(s.ctx, 2, "exhaustive search over %d tables", size)
		s.exhaustive()
	default:
		o.stats.GreedyPartitions++
		log.VEventf(s.ctx, 2, "greedy search over %d tables", size)
		if !s.greedy() {
			if stalledSearch.ShouldLog() {
				log.Warningf(s.ctx, "greedy search stalled over %d tables; enumerating all join orders", size)
			}
			o.stats.GreedyFallbacks++
			s.exhaustive()
		}
	}

	info, ok := o.infos.Lookup(part.Nodes)
	if (!ok || info.Empty()) && s.pruned {
		log.VEventf(s.ctx, 2, "no plan starting from the dominant first nodes; retrying from every node")
		s.unpruned = true
		o.infos.ForEach(func(i *Info) {
			i.expanded = false
		})
		s.exhaustive()
		info, ok = o.infos.Lookup(part.Nodes)
	}
	if !ok || info.Empty() {
		return errors.Wrapf(ErrNoPlan, "no plan joins tables %s", s.names(part.Nodes))
	}
	o.infos.ForEach(func(i *Info) {
		if i.Nodes.SubsetOf(part.Nodes) && !i.Nodes.Equals(part.Nodes) {
			o.infos.Detach(i)
		}
	})
	if log.V(2) {
		best, _ := o.infos.Best(info)
		log.VEventf(s.ctx, 2, "best plan cost %s", o.mem.Plan(best).Cost)
	}
	return nil
}

func (s *partitionSearch) names(nodes intsets.Fast) string {
	var b strings.Builder
	nodes.ForEach(func(n int) {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.o.g.Nodes[n].Alias)
	})
	return b.String()
}

func (s *partitionSearch) hasPathTerm() bool {
	found := false
	s.part.Edges.ForEach(func(t int) {
		if s.o.g.Terms[t].Class == joingraph.PathTerm {
			found = true
		}
	})
	return found
}

// exhaustive joins every legal candidate to every Info, one level of node
// set size at a time, so that each Info is complete before it is expanded.
func (s *partitionSearch) exhaustive() {
	var level []*Info
	s.firstNodes().ForEach(func(n int) {
		info, _ := s.o.infos.Lookup(intsets.MakeFast(n))
		level = append(level, info)
	})
	for size := 1; size < s.part.Nodes.Len(); size++ {
		var next []*Info
		seen := make(map[*Info]bool)
		for _, info := range level {
			if info.Empty() || info.expanded {
				continue
			}
			info.expanded = true
			for _, n := range s.candidates(info.Nodes) {
				target := s.o.join(info, n)
				if !seen[target] {
					seen[target] = true
					next = append(next, target)
				}
			}
		}
		level = next
	}
}

// greedy builds one join order from every first node, committing at each
// step to the cheapest extension. It returns false when an order cannot be
// extended.
func (s *partitionSearch) greedy() bool {
	m := s.o.mem
	ok := true
	s.firstNodes().ForEach(func(first int) {
		if !ok {
			return
		}
		info, _ := s.o.infos.Lookup(intsets.MakeFast(first))
		for !info.Nodes.Equals(s.part.Nodes) {
			sentinel := m.Worst(intsets.Fast{})
			bestCost := m.Plan(sentinel).Cost
			var choice *Info
			var targets []*Info
			for _, n := range s.candidates(info.Nodes) {
				target := s.o.join(info, n)
				targets = append(targets, target)
				if target.Empty() {
					continue
				}
				if target.BestCost.Total() < bestCost.Total() {
					choice, bestCost = target, target.BestCost
				}
			}
			m.Discard(sentinel)
			if choice == nil {
				ok = false
				return
			}
			for _, t := range targets {
				if t != choice && !t.Nodes.Equals(s.part.Nodes) {
					s.o.infos.Detach(t)
				}
			}
			log.VEventf(s.ctx, 3, "greedy step from %s commits to %s", s.names(info.Nodes), s.names(choice.Nodes))
			info = choice
		}
	})
	return ok
}

// firstNodes returns the nodes a join order may start with.
func (s *partitionSearch) firstNodes() intsets.Fast {
	g := s.o.g
	var first intsets.Fast
	s.part.Nodes.ForEach(func(n int) {
		if !g.Nodes[n].Deps.Intersects(s.part.Nodes) {
			first.Add(n)
		}
	})
	if g.Ordered {
		if n, ok := first.First(); ok {
			return intsets.MakeFast(n)
		}
		return first
	}

	// Nodes with a join hint are only joined as the inner side, unless no
	// other node can start.
	var unhinted intsets.Fast
	first.ForEach(func(n int) {
		if g.Nodes[n].Hint == 0 {
			unhinted.Add(n)
		}
	})
	if !unhinted.Empty() {
		first = unhinted
	}

	if !s.o.params.dominantFirstNodes || s.unpruned || first.Len() < 2 {
		return first
	}
	best := make(map[int]*Info)
	first.ForEach(func(n int) {
		best[n], _ = s.o.infos.Lookup(intsets.MakeFast(n))
	})
	var dominated intsets.Fast
	first.ForEach(func(n int) {
		first.ForEach(func(d int) {
			if d == n || dominated.Contains(n) || s.adjacent(d, n) {
				return
			}
			if best[d].Empty() || best[n].Empty() {
				return
			}
			bd, _ := s.o.infos.Best(best[d])
			bn, _ := s.o.infos.Best(best[n])
			if s.o.mem.Compare(bd, bn) == memo.Greater {
				dominated.Add(n)
			}
		})
	})
	if !dominated.Empty() && dominated.Len() < first.Len() {
		first.DifferenceWith(dominated)
		s.pruned = true
	}
	return first
}

// adjacent returns true if an edge connects the two nodes.
func (s *partitionSearch) adjacent(a, b joingraph.NodeID) bool {
	pair := intsets.MakeFast(a, b)
	found := false
	s.part.Edges.ForEach(func(t int) {
		if s.o.g.Terms[t].Nodes.Equals(pair) {
			found = true
		}
	})
	return found
}

// candidates returns the nodes that may be joined next to the visited set:
// nodes whose dependencies within the partition are satisfied, restricted
// to the ones connected to the visited set when there are any.
func (s *partitionSearch) candidates(visited intsets.Fast) []joingraph.NodeID {
	g := s.o.g
	var legal []joingraph.NodeID
	s.part.Nodes.Difference(visited).ForEach(func(n int) {
		if g.Nodes[n].Deps.Intersection(s.part.Nodes).SubsetOf(visited) {
			legal = append(legal, n)
		}
	})
	if g.Ordered && len(legal) > 1 {
		return legal[:1]
	}
	var connected []joingraph.NodeID
	for _, n := range legal {
		if s.connected(visited, n) {
			connected = append(connected, n)
		}
	}
	if len(connected) > 0 {
		return connected
	}
	return legal
}

// connected returns true if a term joins n to the visited set or n depends
// on a visited node.
func (s *partitionSearch) connected(visited intsets.Fast, n joingraph.NodeID) bool {
	g := s.o.g
	if g.Nodes[n].Deps.Intersects(visited) {
		return true
	}
	found := false
	s.part.Edges.ForEach(func(id int) {
		t := &g.Terms[id]
		if t.Nodes.Contains(n) && t.Nodes.Intersects(visited) {
			found = true
		}
	})
	return found
}
