// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/xlab/treeprint"
)

// FmtFlags controls how much of a plan is printed.
type FmtFlags int

// HasFlags tests whether the given flags are all set.
func (f FmtFlags) HasFlags(subset FmtFlags) bool {
	return f&subset == subset
}

const (
	// FmtCost shows the cost of every plan node.
	FmtCost FmtFlags = 1 << iota
	// FmtCard shows the estimated row count of every plan node.
	FmtCard
	// FmtOrder shows the output ordering of every plan node.
	FmtOrder
	// FmtTerms shows the terms and subqueries evaluated at every plan node.
	FmtTerms

	// FmtShape only shows the operators.
	FmtShape FmtFlags = 0
	// FmtAll shows everything.
	FmtAll = FmtCost | FmtCard | FmtOrder | FmtTerms
)

// FormatPlan renders the plan tree rooted at r.
func (m *Memo) FormatPlan(r PlanRef, flags FmtFlags) string {
	tree := treeprint.NewWithRoot(m.planLabel(r, flags))
	m.formatChildren(tree, r, flags)
	return tree.String()
}

func (m *Memo) formatChildren(tree treeprint.Tree, r PlanRef, flags FmtFlags) {
	for _, c := range m.Plan(r).Op.Children() {
		m.formatChildren(tree.AddBranch(m.planLabel(c, flags)), c, flags)
	}
}

func (m *Memo) planLabel(r PlanRef, flags FmtFlags) string {
	p := m.Plan(r)
	var b strings.Builder
	b.WriteString(p.Op.Describe(m.g))
	if flags.HasFlags(FmtCard) {
		fmt.Fprintf(&b, " rows=%s", joingraph.FormatFloat(p.Card))
	}
	if flags.HasFlags(FmtOrder) && p.Order != joingraph.NoEqClass {
		fmt.Fprintf(&b, " order=%s", m.FormatEqClass(p.Order))
	}
	if flags.HasFlags(FmtCost) {
		fmt.Fprintf(&b, " cost=%s", p.Cost)
	}
	if flags.HasFlags(FmtTerms) {
		if j, ok := p.Op.(*Join); ok {
			writeTerms(&b, m.g, "join", j.JoinTerms)
			writeTerms(&b, m.g, "during", j.DuringTerms)
			writeTerms(&b, m.g, "after", j.AfterTerms)
			writeTerms(&b, m.g, "implied", j.DupTerms)
		}
		writeTerms(&b, m.g, "filter", p.Filters)
		if !p.Subqueries.Empty() {
			names := make([]string, 0, p.Subqueries.Len())
			p.Subqueries.ForEach(func(i int) {
				names = append(names, "$"+m.g.Subqueries[i].Name)
			})
			fmt.Fprintf(&b, " subqueries=[%s]", strings.Join(names, ", "))
		}
	}
	return b.String()
}

func writeTerms(b *strings.Builder, g *joingraph.Graph, label string, terms intsets.Fast) {
	if !terms.Empty() {
		fmt.Fprintf(b, " %s=%s", label, TermList(g, terms))
	}
}

// FormatEqClass renders an equivalence class as the list of its segments.
func (m *Memo) FormatEqClass(e joingraph.EqClassID) string {
	ec := &m.g.EqClasses[e]
	names := make([]string, 0, ec.Segments.Len())
	ec.Segments.ForEach(func(s int) {
		names = append(names, m.g.SegmentName(s))
	})
	return "(" + strings.Join(names, "=") + ")"
}
