// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package joingraph

import (
	"math"
	"sort"

	"github.com/cockroachdb/qplan/pkg/util/intsets"
)

// Cardinality estimates the number of rows produced by joining the given
// nodes and applying every term whose scope lies within them. It only
// depends on the set, not on the join order. Equi-join terms of the same
// equivalence class are applied along a spanning forest of the class so
// that implied predicates are not counted twice. A null-supplying node never
// reduces the row count below that of the nodes it is joined to.
func (g *Graph) Cardinality(nodes intsets.Fast) float64 {
	card := g.innerCardinality(nodes)
	if outer := g.NullSupplying(nodes); !outer.Empty() && !outer.Equals(nodes) {
		card = math.Max(card, g.innerCardinality(nodes.Difference(outer)))
	}
	return card
}

func (g *Graph) innerCardinality(nodes intsets.Fast) float64 {
	card := 1.0
	nodes.ForEach(func(n int) {
		card *= g.Nodes[n].Card * g.Nodes[n].SargSel
	})
	var terms []*Term
	for i := range g.Terms {
		t := &g.Terms[i]
		if t.Class != SargTerm && t.Scope.SubsetOf(nodes) {
			terms = append(terms, t)
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Selectivity < terms[j].Selectivity
	})
	forests := make(map[EqClassID]*unionFind)
	for _, t := range terms {
		if t.Mergeable && t.Nodes.Len() == 2 {
			uf, ok := forests[t.EqClass]
			if !ok {
				f := makeUnionFind(len(g.Nodes))
				uf = &f
				forests[t.EqClass] = uf
			}
			ends := t.Nodes.Ordered()
			if !uf.union(ends[0], ends[1]) {
				continue
			}
		}
		card *= t.Selectivity
	}
	if card < 1 {
		card = 1
	}
	return card
}

// ScanCardinality estimates the rows returned by a scan of the node that
// also applies the given terms. Terms reaching other nodes, such as the join
// terms used as index keys of a correlated index scan, further reduce the
// estimate.
func (g *Graph) ScanCardinality(n NodeID, extra intsets.Fast) float64 {
	node := intsets.MakeFast(n)
	card := g.Cardinality(node)
	extra.ForEach(func(id int) {
		if !g.Terms[id].Scope.SubsetOf(node) {
			card *= g.Terms[id].Selectivity
		}
	})
	if card < 1 {
		card = 1
	}
	return card
}
