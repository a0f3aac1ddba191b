// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package joingraph

import (
	"strings"

	"github.com/cockroachdb/qplan/pkg/sql/opt/cat"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
)

// IndexEntry is an index usable by a node. For a node scanning a class
// hierarchy the entry chains one index per class, all with the same key
// columns.
type IndexEntry struct {
	// Ordinal is the position of the entry in Node.Indexes.
	Ordinal int
	Node    NodeID
	Index   cat.Index
	Chain   []cat.Index
	// Stats combines the statistics of every index of the chain.
	Stats cat.IndexStatistics

	// Keys holds the segment of every key column, or -1 when the query does
	// not reference the column.
	Keys []SegmentID
	// EqTerms and RangeTerms hold, per key position, the terms usable as an
	// equality bound and as a range bound of the key.
	EqTerms    []intsets.Fast
	RangeTerms []intsets.Fast

	// Order is the equivalence class of the first key column.
	Order EqClassID

	// Force and Exclude are set by "(+)" and "(-)" index hints.
	Force   bool
	Exclude bool
}

// ProvidesOrder returns true if a scan of the entry returns rows in Order.
// A chain yields one sorted run per class, which is not ordered as a whole.
func (e *IndexEntry) ProvidesOrder() bool {
	return e.Order != NoEqClass && !e.Exclude && len(e.Chain) <= 1
}

// Name returns the name of the index.
func (e *IndexEntry) Name() string {
	return e.Index.Name()
}

// KeySegments returns the set of referenced key segments.
func (e *IndexEntry) KeySegments() intsets.Fast {
	var res intsets.Fast
	for _, s := range e.Keys {
		if s >= 0 {
			res.Add(s)
		}
	}
	return res
}

// KeyRange selects, among the available terms, the ones bounding the index
// key range: an equality term for each leading key column, then the range
// terms of the next column. Equality terms in prefer are chosen over the
// others. It returns the selected terms and the length of the bound key
// prefix.
func (e *IndexEntry) KeyRange(avail, prefer intsets.Fast) (used intsets.Fast, prefix int) {
	for k, seg := range e.Keys {
		if seg < 0 {
			break
		}
		if eq := e.EqTerms[k].Intersection(avail); !eq.Empty() {
			if p := eq.Intersection(prefer); !p.Empty() {
				eq = p
			}
			first, _ := eq.First()
			used.Add(first)
			prefix = k + 1
			continue
		}
		if r := e.RangeTerms[k].Intersection(avail); !r.Empty() {
			used.UnionWith(r)
			prefix = k + 1
		}
		break
	}
	return used, prefix
}

// KeyFilter returns the available single-node terms, other than the key
// range terms, that only reference key columns and so can be checked on the
// index entries before fetching rows.
func (e *IndexEntry) KeyFilter(g *Graph, avail, used intsets.Fast) intsets.Fast {
	keys := e.KeySegments()
	var res intsets.Fast
	avail.Difference(used).ForEach(func(id int) {
		t := &g.Terms[id]
		if t.Class == SargTerm && t.Subqueries.Empty() && t.Segments.SubsetOf(keys) {
			res.Add(id)
		}
	})
	return res
}

// indexable reports whether the term can bound the key segment seg of node
// n, and whether it does so as an equality.
func (g *Graph) indexable(t *Term, n NodeID, seg SegmentID) (ok, eq bool) {
	if t.Class != SargTerm && t.Class != JoinTerm {
		return false, false
	}
	if t.JoinType == qtree.FullJoin || g.Segments[seg].Head != n {
		return false, false
	}
	switch {
	case t.Sides[0].Seg == seg && !t.Sides[1].Nodes.Contains(n):
		switch t.Op {
		case qtree.OpEq:
			return true, true
		case qtree.OpLt, qtree.OpLe, qtree.OpGt, qtree.OpGe, qtree.OpBetween, qtree.OpIn:
			return true, false
		}
	case t.Sides[1].Seg == seg && !t.Sides[0].Nodes.Contains(n):
		switch t.Op {
		case qtree.OpEq:
			return true, true
		case qtree.OpLt, qtree.OpLe, qtree.OpGt, qtree.OpGe:
			return true, false
		}
	}
	return false, false
}

func (b *builder) buildIndexes() error {
	g := b.g
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if len(node.Tables) == 0 {
			continue
		}
		root := node.Tables[0]
		for j := 0; j < root.IndexCount(); j++ {
			entry, err := b.indexEntry(node, root.Index(j))
			if err != nil {
				return err
			}
			if entry != nil {
				entry.Ordinal = len(node.Indexes)
				node.Indexes = append(node.Indexes, entry)
			}
		}
	}
	return nil
}

// indexEntry returns the entry for the index, or nil if the node cannot use
// it.
func (b *builder) indexEntry(node *Node, idx cat.Index) (*IndexEntry, error) {
	g := b.g
	chain := []cat.Index{idx}
	for _, t := range node.Tables[1:] {
		var match cat.Index
		for k := 0; k < t.IndexCount(); k++ {
			if cat.SameKeyColumns(idx, t.Index(k)) {
				match = t.Index(k)
				break
			}
		}
		if match == nil {
			return nil, nil
		}
		chain = append(chain, match)
	}
	e := &IndexEntry{
		Node:  node.ID,
		Index: idx,
		Chain: chain,
		Order: NoEqClass,
	}
	root := node.Tables[0]
	for k := 0; k < idx.KeyColumnCount(); k++ {
		ref := qtree.ColumnRef{Table: node.Alias, Column: root.Column(idx.KeyColumn(k)).ColName()}
		seg, ok := g.segmentsByRef[ref]
		if !ok {
			seg = -1
		}
		e.Keys = append(e.Keys, seg)
	}
	if e.Keys[0] < 0 {
		return nil, nil
	}
	for _, ci := range chain {
		st, ok := ci.Statistics()
		if !ok {
			return nil, invalidf("no statistics for index %q", ci.Name())
		}
		if st.Height > e.Stats.Height {
			e.Stats.Height = st.Height
		}
		e.Stats.LeafPages += st.LeafPages
		e.Stats.TotalPages += st.TotalPages
		if e.Stats.KeySize == 0 {
			e.Stats.KeySize = st.KeySize
		}
		for k, d := range st.PrefixDistinct {
			if k < len(e.Stats.PrefixDistinct) {
				e.Stats.PrefixDistinct[k] += d
			} else {
				e.Stats.PrefixDistinct = append(e.Stats.PrefixDistinct, d)
			}
		}
	}
	for k := range e.Stats.PrefixDistinct {
		if e.Stats.PrefixDistinct[k] > node.Card {
			e.Stats.PrefixDistinct[k] = node.Card
		}
	}
	e.EqTerms = make([]intsets.Fast, len(e.Keys))
	e.RangeTerms = make([]intsets.Fast, len(e.Keys))
	for k, seg := range e.Keys {
		if seg < 0 {
			continue
		}
		for i := range g.Terms {
			ok, eq := g.indexable(&g.Terms[i], node.ID, seg)
			switch {
			case ok && eq:
				e.EqTerms[k].Add(i)
			case ok:
				e.RangeTerms[k].Add(i)
			}
		}
	}
	e.Order = g.Segments[e.Keys[0]].EqClass
	return e, nil
}

// applyIndexHints restricts the usable indexes of the nodes named by USING
// INDEX hints.
func (b *builder) applyIndexHints() error {
	g := b.g
	for _, h := range g.Query.Hints.Indexes {
		n, ok := g.NodeByAlias(h.Table)
		if !ok {
			return invalidf("index hint references unknown alias %q", h.Table)
		}
		node := &g.Nodes[n]
		if h.None {
			node.Indexes = nil
			continue
		}
		listed := make(map[*IndexEntry]bool)
		for _, name := range h.Indexes {
			base, force, exclude := parseIndexHint(name)
			e, err := b.findIndex(node, base)
			if err != nil {
				return err
			}
			if e == nil {
				continue
			}
			listed[e] = true
			if !h.Except {
				e.Force = e.Force || force
				e.Exclude = e.Exclude || exclude
			}
		}
		var kept []*IndexEntry
		for _, e := range node.Indexes {
			if listed[e] != h.Except {
				kept = append(kept, e)
			}
		}
		for i, e := range kept {
			e.Ordinal = i
		}
		node.Indexes = kept
	}
	return nil
}

func parseIndexHint(name string) (base string, force, exclude bool) {
	name = strings.TrimSpace(name)
	switch {
	case strings.HasSuffix(name, "(+)"):
		return strings.TrimSpace(strings.TrimSuffix(name, "(+)")), true, false
	case strings.HasSuffix(name, "(-)"):
		return strings.TrimSpace(strings.TrimSuffix(name, "(-)")), false, true
	}
	return name, false, false
}

// findIndex returns the usable entry with the given name. It returns nil
// without error if the table has the index but the node cannot use it.
func (b *builder) findIndex(node *Node, name string) (*IndexEntry, error) {
	for _, e := range node.Indexes {
		if e.Name() == name {
			return e, nil
		}
	}
	if len(node.Tables) > 0 {
		root := node.Tables[0]
		for j := 0; j < root.IndexCount(); j++ {
			if root.Index(j).Name() == name {
				return nil, nil
			}
		}
	}
	return nil, invalidf("index hint references unknown index %q on %q", name, node.Alias)
}
