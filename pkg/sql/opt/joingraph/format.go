// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package joingraph

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatFloat renders estimates with four significant digits.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 4, 64)
}

// SegmentName returns "alias.column" for the segment.
func (g *Graph) SegmentName(s SegmentID) string {
	seg := &g.Segments[s]
	return g.Nodes[seg.Head].Alias + "." + seg.Name
}

// String renders the graph one element per line; it is used by tests and
// debugging tools.
func (g *Graph) String() string {
	var b strings.Builder
	for i := range g.Nodes {
		n := &g.Nodes[i]
		fmt.Fprintf(&b, "node %d %s", n.ID, n.Alias)
		if len(n.Tables) > 0 {
			fmt.Fprintf(&b, " table=%s", n.Tables[0].Name())
			if len(n.Tables) > 1 {
				fmt.Fprintf(&b, "+%d", len(n.Tables)-1)
			}
		} else {
			b.WriteString(" derived")
		}
		fmt.Fprintf(&b, " card=%s pages=%s", FormatFloat(n.Card), FormatFloat(n.Pages))
		if n.IsOuter() {
			fmt.Fprintf(&b, " join=%s", n.JoinType)
		}
		if !n.Deps.Empty() {
			fmt.Fprintf(&b, " deps=%s", n.Deps)
		}
		if n.Hint != 0 {
			fmt.Fprintf(&b, " hint=%s", n.Hint)
		}
		b.WriteByte('\n')
		for _, e := range n.Indexes {
			keys := make([]string, 0, len(e.Keys))
			for _, s := range e.Keys {
				if s < 0 {
					keys = append(keys, "-")
				} else {
					keys = append(keys, g.SegmentName(s))
				}
			}
			fmt.Fprintf(&b, "  index %s keys=(%s)", e.Name(), strings.Join(keys, ","))
			if e.Order != NoEqClass {
				fmt.Fprintf(&b, " order=%d", e.Order)
			}
			if e.Force {
				b.WriteString(" force")
			}
			if e.Exclude {
				b.WriteString(" exclude")
			}
			b.WriteByte('\n')
		}
	}
	for i := range g.Terms {
		t := &g.Terms[i]
		fmt.Fprintf(&b, "term %d %s [%s] sel=%s", t.ID, t.Class, t, FormatFloat(t.Selectivity))
		if t.EqClass != NoEqClass {
			fmt.Fprintf(&b, " eqclass=%d", t.EqClass)
		}
		if t.Transitive {
			b.WriteString(" transitive")
		}
		if !t.Scope.Equals(t.Nodes) {
			fmt.Fprintf(&b, " scope=%s", t.Scope)
		}
		b.WriteByte('\n')
	}
	for i := range g.EqClasses {
		ec := &g.EqClasses[i]
		names := make([]string, 0, ec.Segments.Len())
		ec.Segments.ForEach(func(s int) {
			names = append(names, g.SegmentName(s))
		})
		fmt.Fprintf(&b, "eqclass %d (%s)", ec.ID, strings.Join(names, ","))
		if ec.Term >= 0 {
			fmt.Fprintf(&b, " term=%d", ec.Term)
		}
		b.WriteByte('\n')
	}
	for i := range g.Partitions {
		p := &g.Partitions[i]
		fmt.Fprintf(&b, "partition %d nodes=%s edges=%s", p.ID, p.Nodes, p.Edges)
		if !p.Deps.Empty() {
			fmt.Fprintf(&b, " deps=%s", p.Deps)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
