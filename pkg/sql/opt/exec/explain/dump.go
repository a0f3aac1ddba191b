// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/xform"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	humanize "github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// FormatMemo renders every Info of an optimization run in node-set order,
// with its cardinality, the cost of its best plan and how many plans it was
// offered and kept.
func FormatMemo(res *xform.Result) string {
	g := res.Graph()
	var b strings.Builder
	var rows [][]string
	res.Infos.ForEach(func(info *xform.Info) {
		best := "-"
		if info.Offered > 0 && !info.BestCost.IsInfinite() {
			best = joingraph.FormatFloat(info.BestCost.Total())
		}
		rows = append(rows, []string{
			info.Nodes.String(),
			aliases(g, info.Nodes),
			joingraph.FormatFloat(info.Card),
			best,
			strconv.Itoa(info.Offered),
			strconv.Itoa(info.Retained),
		})
	})
	renderTable(&b, []string{"nodes", "tables", "rows", "best cost", "offered", "retained"}, rows)
	s := &res.Stats
	fmt.Fprintf(&b, "%s infos, %s plans created, %s offered, %s rejected, %s live\n",
		humanize.Comma(int64(s.InfosCreated)), humanize.Comma(int64(s.PlansCreated)),
		humanize.Comma(int64(s.PlansOffered)), humanize.Comma(int64(s.PlansRejected)),
		humanize.Comma(int64(s.PlansLive)))
	return b.String()
}

// FormatGraph renders the nodes, terms, equivalence classes and partitions
// of a join graph as tables.
func FormatGraph(g *joingraph.Graph) string {
	var b strings.Builder

	var rows [][]string
	for i := range g.Nodes {
		n := &g.Nodes[i]
		table := "derived"
		if len(n.Tables) > 0 {
			table = n.Tables[0].Name()
			if len(n.Tables) > 1 {
				table += fmt.Sprintf("+%d", len(n.Tables)-1)
			}
		}
		indexes := make([]string, 0, len(n.Indexes))
		for _, e := range n.Indexes {
			name := e.Name()
			switch {
			case e.Force:
				name += "!"
			case e.Exclude:
				name += "-"
			}
			indexes = append(indexes, name)
		}
		rows = append(rows, []string{
			strconv.Itoa(n.ID), n.Alias, table,
			joingraph.FormatFloat(n.Card), joingraph.FormatFloat(n.Pages),
			n.JoinType.String(), setOrDash(n.Deps), n.Hint.String(),
			strings.Join(indexes, ","),
		})
	}
	renderTable(&b, []string{"node", "alias", "table", "rows", "pages", "join", "deps", "hint", "indexes"}, rows)
	b.WriteByte('\n')

	rows = rows[:0]
	for i := range g.Terms {
		t := &g.Terms[i]
		eq := "-"
		if t.EqClass != joingraph.NoEqClass {
			eq = strconv.Itoa(t.EqClass)
		}
		class := t.Class.String()
		if t.Transitive {
			class += "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(t.ID), class, t.String(), joingraph.FormatFloat(t.Selectivity),
			eq, t.Scope.String(),
		})
	}
	renderTable(&b, []string{"term", "class", "predicate", "sel", "eqclass", "scope"}, rows)
	b.WriteByte('\n')

	rows = rows[:0]
	for i := range g.EqClasses {
		ec := &g.EqClasses[i]
		names := make([]string, 0, ec.Segments.Len())
		ec.Segments.ForEach(func(s int) {
			names = append(names, g.SegmentName(s))
		})
		rows = append(rows, []string{strconv.Itoa(ec.ID), strings.Join(names, "="), ec.Nodes.String()})
	}
	renderTable(&b, []string{"eqclass", "segments", "nodes"}, rows)
	b.WriteByte('\n')

	rows = rows[:0]
	for i := range g.Partitions {
		p := &g.Partitions[i]
		rows = append(rows, []string{
			strconv.Itoa(p.ID), aliases(g, p.Nodes), p.Edges.String(), setOrDash(p.Deps),
		})
	}
	renderTable(&b, []string{"partition", "tables", "edges", "deps"}, rows)
	return b.String()
}

func aliases(g *joingraph.Graph, nodes intsets.Fast) string {
	names := make([]string, 0, nodes.Len())
	nodes.ForEach(func(n int) {
		names = append(names, g.Nodes[n].Alias)
	})
	return strings.Join(names, ",")
}

func setOrDash(s intsets.Fast) string {
	if s.Empty() {
		return "-"
	}
	return s.String()
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}
