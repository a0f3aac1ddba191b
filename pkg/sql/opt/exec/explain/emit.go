// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/xform"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/cockroachdb/redact"
	humanize "github.com/dustin/go-humanize"
)

// Format renders the plan chosen by an optimization run as a tree, one
// operator per node.
func Format(res *xform.Result, flags Flags) string {
	ob := NewOutputBuilder(flags)
	e := emitter{ob: ob, m: res.Memo, g: res.Graph()}
	if !flags.Deflake.HasAny(DeflakeCost) {
		ob.AddField("cost", e.cost(res.Cost))
	}
	if flags.Verbose {
		if res.Order != joingraph.NoEqClass {
			ob.AddField("order", e.m.FormatEqClass(res.Order))
		}
		if !flags.Deflake.HasAny(DeflakeStats) {
			s := &res.Stats
			ob.AddField("search", fmt.Sprintf("%s infos, %s plans offered, %s retained",
				humanize.Comma(int64(s.InfosCreated)), humanize.Comma(int64(s.PlansOffered)),
				humanize.Comma(int64(s.PlansRetained))))
		}
	}
	e.emit(res.Plan)
	return ob.BuildString()
}

type emitter struct {
	ob *OutputBuilder
	m  *memo.Memo
	g  *joingraph.Graph
}

func (e *emitter) emit(r memo.PlanRef) {
	p := e.m.Plan(r)
	e.ob.EnterNode(nodeName(p))
	if !e.ob.flags.OnlyShape {
		e.emitFields(p)
	}
	for _, c := range p.Op.Children() {
		e.emit(c)
	}
	e.ob.LeaveNode()
}

func nodeName(p *memo.Plan) string {
	switch op := p.Op.(type) {
	case *memo.Scan:
		if op.Method == memo.IndexScan {
			return "index-scan"
		}
		return "seq-scan"
	case *memo.Join:
		return op.Method.String()
	}
	return p.Kind.String()
}

func (e *emitter) emitFields(p *memo.Plan) {
	ob := e.ob
	switch op := p.Op.(type) {
	case *memo.Scan:
		ob.AddField("table", e.tableName(op))
		switch {
		case op.Method == memo.SeqScan:
		case op.KeyRange.Empty():
			ob.AddField("spans", "FULL SCAN")
		default:
			ob.AddField("spans", e.terms(op.KeyRange))
		}
		if !op.KeyFilter.Empty() {
			ob.AddField("key filter", e.terms(op.KeyFilter))
		}
		if op.Correlated {
			ob.AddField("lookup", "per outer row")
		}

	case *memo.Sort:
		ob.AddField("purpose", op.Purpose.String())
		switch {
		case op.Multi:
			ob.AddField("key", "multiple columns")
		case p.Order != joingraph.NoEqClass:
			ob.AddField("key", e.m.FormatEqClass(p.Order))
		}

	case *memo.Join:
		if op.JoinType != qtree.InnerJoin {
			ob.AddField("type", op.JoinType.String()+" outer")
		}
		if op.Method == memo.MergeJoin {
			ob.AddField("merge on", e.terms(intsets.MakeFast(op.MergeTerm)))
		}
		e.termsField("join", op.JoinTerms)
		e.termsField("during", op.DuringTerms)
		e.termsField("after", op.AfterTerms)
		if e.ob.flags.Verbose {
			e.termsField("implied", op.DupTerms)
		}

	case *memo.Follow:
		ob.AddField("path", e.terms(intsets.MakeFast(op.Term)))
		ob.AddField("target", e.g.Nodes[e.g.Terms[op.Term].Target].Alias)
	}

	e.termsField("filter", p.Filters)
	if !p.Subqueries.Empty() {
		names := make([]string, 0, p.Subqueries.Len())
		p.Subqueries.ForEach(func(i int) {
			names = append(names, "$"+e.g.Subqueries[i].Name)
		})
		ob.AddField("subqueries", strings.Join(names, ", "))
	}
	ob.AddField("estimated row count", humanize.Comma(int64(math.Round(p.Card))))
	if e.ob.flags.Verbose {
		if !e.ob.flags.Deflake.HasAny(DeflakeCost) {
			ob.AddField("cost", e.cost(p.Cost))
		}
		ob.AddField("size", humanize.IBytes(uint64(math.Round(p.Card*float64(p.Width)))))
		if p.Order != joingraph.NoEqClass {
			ob.AddField("order", e.m.FormatEqClass(p.Order))
		}
	}
}

func (e *emitter) tableName(s *memo.Scan) string {
	n := &e.g.Nodes[s.Node]
	name := "derived"
	if len(n.Tables) > 0 {
		name = n.Tables[0].Name()
	}
	if name != n.Alias {
		name += " as " + n.Alias
	}
	if s.Method == memo.IndexScan {
		name += "@" + s.Index.Name()
	}
	return name
}

func (e *emitter) cost(c memo.Cost) string {
	if c.IsInfinite() {
		return "infinite"
	}
	if e.ob.flags.Verbose {
		return c.String()
	}
	return joingraph.FormatFloat(c.Total())
}

func (e *emitter) termsField(key string, terms intsets.Fast) {
	if !terms.Empty() {
		e.ob.AddField(key, e.terms(terms))
	}
}

// terms renders a set of terms, hiding or redacting their text when the
// flags ask for it.
func (e *emitter) terms(terms intsets.Fast) string {
	switch {
	case e.ob.flags.HideValues:
		n := terms.Len()
		if n == 1 {
			return "1 term"
		}
		return fmt.Sprintf("%d terms", n)
	case e.ob.flags.RedactValues:
		parts := make([]string, 0, terms.Len())
		terms.ForEach(func(t int) {
			parts = append(parts, string(redact.Sprint(e.g.Terms[t].String()).Redact()))
		})
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return memo.TermList(e.g, terms)
}
