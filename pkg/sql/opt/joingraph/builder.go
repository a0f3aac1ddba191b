// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package joingraph

import (
	"context"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/cat"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/cockroachdb/qplan/pkg/util/log"
)

// TransitiveTerms controls the generation of equi-join terms implied by
// equivalence classes spanning three or more nodes.
var TransitiveTerms = settings.RegisterBoolSetting(
	"sql.optimizer.join_graph.transitive_terms.enabled",
	"add equi-join terms implied by equivalence classes spanning three or more tables",
	true,
)

const defaultColumnWidth = 8

// Build constructs the join graph of a query. Errors caused by the query or
// the catalog are marked with ErrInvalidQuery.
func Build(
	ctx context.Context, catalog cat.Catalog, q *qtree.Query, sv *settings.Values,
) (*Graph, error) {
	b := builder{
		ctx:     ctx,
		catalog: catalog,
		sv:      sv,
		g: &Graph{
			Query:         q,
			GroupBy:       NoEqClass,
			OrderBy:       NoEqClass,
			Distinct:      q.Distinct,
			Ordered:       q.Hints.Ordered,
			segmentsByRef: make(map[qtree.ColumnRef]SegmentID),
		},
	}
	for _, step := range []func() error{
		b.buildNodes,
		b.buildSubqueries,
		b.buildTerms,
		b.buildProjection,
		b.reduceOuterJoins,
		b.classifyTerms,
		b.buildEqClasses,
		b.buildOrderings,
		b.addTransitiveTerms,
		b.computeSelectivities,
		b.buildIndexes,
		b.applyIndexHints,
		b.buildPartitions,
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	log.VEventf(ctx, 2, "built join graph: %d nodes, %d segments, %d terms, %d eqclasses, %d partitions",
		len(b.g.Nodes), len(b.g.Segments), len(b.g.Terms), len(b.g.EqClasses), len(b.g.Partitions))
	return b.g, nil
}

type builder struct {
	ctx     context.Context
	catalog cat.Catalog
	sv      *settings.Values
	g       *Graph

	// outerDeps holds the dependencies introduced by outer joins; they are
	// dropped when an outer join is reduced to an inner join.
	outerDeps []intsets.Fast
	otherDeps []intsets.Fast
	// nullableUntil is, per node, the position of the last outer join that
	// can null-extend the node, or -1.
	nullableUntil []int
}

func (b *builder) buildNodes() error {
	q := b.g.Query
	if len(q.Tables) == 0 {
		return invalidf("query has no FROM items")
	}
	n := len(q.Tables)
	b.g.Nodes = make([]Node, n)
	b.outerDeps = make([]intsets.Fast, n)
	b.otherDeps = make([]intsets.Fast, n)
	b.nullableUntil = make([]int, n)
	seen := make(map[string]bool)
	for i := range q.Tables {
		spec := &q.Tables[i]
		alias := spec.Alias
		if alias == "" {
			alias = spec.Table
		}
		if alias == "" {
			return invalidf("FROM item %d has neither a table nor an alias", i)
		}
		if seen[alias] {
			return invalidf("duplicate FROM alias %q", alias)
		}
		seen[alias] = true
		node := &b.g.Nodes[i]
		*node = Node{ID: i, Alias: alias, Hint: spec.Hint, SargSel: 1}
		b.nullableUntil[i] = -1
		if err := b.resolveNode(node, spec); err != nil {
			return err
		}
	}

	for i := range q.Tables {
		spec := &q.Tables[i]
		switch spec.Join {
		case qtree.LeftJoin, qtree.FullJoin:
			if i == 0 {
				return invalidf("first FROM item %q cannot be outer joined", b.g.Nodes[i].Alias)
			}
			b.g.Nodes[i].JoinType = spec.Join
			b.outerDeps[i].AddRange(0, i)
			b.nullableUntil[i] = i
			if spec.Join == qtree.FullJoin {
				for j := 0; j < i; j++ {
					b.nullableUntil[j] = i
				}
			}
		case qtree.RightJoin:
			if i == 0 {
				return invalidf("first FROM item %q cannot be outer joined", b.g.Nodes[i].Alias)
			}
			// The preceding items become null-supplying for the preserved item,
			// which is joined first.
			for j := 0; j < i; j++ {
				b.g.Nodes[j].JoinType = qtree.LeftJoin
				b.outerDeps[j].Add(i)
				b.nullableUntil[j] = i
			}
		}
		if d := spec.Derived; d != nil {
			for _, alias := range d.Correlated {
				dep, ok := b.g.NodeByAlias(alias)
				if !ok {
					return invalidf("derived table %q references unknown alias %q", b.g.Nodes[i].Alias, alias)
				}
				if dep == i {
					return invalidf("derived table %q references itself", alias)
				}
				b.otherDeps[i].Add(dep)
			}
		}
	}
	return nil
}

func (b *builder) resolveNode(node *Node, spec *qtree.TableSpec) error {
	if d := spec.Derived; d != nil {
		node.Derived = d
		node.Card = d.Rows
		node.Pages = d.Pages
	} else {
		ds, err := b.catalog.ResolveDataSource(b.ctx, spec.Table)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "resolving FROM item %q", node.Alias), ErrInvalidQuery)
		}
		tab, ok := ds.(cat.Table)
		if !ok {
			return invalidf("%q is not a table", spec.Table)
		}
		node.Tables = []cat.Table{tab}
		if !spec.Only {
			node.Tables = cat.Hierarchy(tab)
		}
		for _, t := range node.Tables {
			st, ok := t.Statistics()
			if !ok {
				return invalidf("no statistics for table %q", t.Name())
			}
			node.Card += st.RowCount
			node.Pages += st.PageCount
		}
	}
	if node.Card < 1 {
		node.Card = 1
	}
	if node.Pages < 1 {
		node.Pages = 1
	}
	return nil
}

// segment returns the segment of the column, creating it on first use.
func (b *builder) segment(ref qtree.ColumnRef) (SegmentID, error) {
	if id, ok := b.g.segmentsByRef[ref]; ok {
		return id, nil
	}
	n, ok := b.g.NodeByAlias(ref.Table)
	if !ok {
		return -1, invalidf("column %s references unknown alias %q", ref, ref.Table)
	}
	node := &b.g.Nodes[n]
	seg := Segment{
		ID:      len(b.g.Segments),
		Head:    n,
		Name:    ref.Column,
		EqClass: NoEqClass,
	}
	if node.Derived != nil {
		found := false
		for i, c := range node.Derived.Columns {
			if c.Name == ref.Column {
				seg.Column, seg.Width, seg.Distinct = i, c.Width, c.Distinct
				found = true
				break
			}
		}
		if !found {
			return -1, invalidf("derived table %q has no column %q", node.Alias, ref.Column)
		}
	} else if err := b.resolveColumn(node, &seg); err != nil {
		return -1, err
	}
	if seg.Width <= 0 {
		seg.Width = defaultColumnWidth
	}
	if seg.Distinct > node.Card {
		seg.Distinct = node.Card
	}
	b.g.Segments = append(b.g.Segments, seg)
	b.g.segmentsByRef[ref] = seg.ID
	node.Segments.Add(seg.ID)
	return seg.ID, nil
}

// resolveColumn fills in the catalog metadata of a table segment. Statistics
// of a class hierarchy are combined over all classes.
func (b *builder) resolveColumn(node *Node, seg *Segment) error {
	root := node.Tables[0]
	ord := cat.FindColumn(root, seg.Name)
	if ord < 0 {
		return invalidf("table %q has no column %q", root.Name(), seg.Name)
	}
	seg.Column = ord
	seg.Width = root.Column(ord).AvgSize()
	allRanges := true
	haveStats := false
	var nullRows float64
	for _, t := range node.Tables {
		j := cat.FindColumn(t, seg.Name)
		if j < 0 {
			return invalidf("class %q has no column %q", t.Name(), seg.Name)
		}
		st, ok := t.Column(j).Statistic()
		if !ok {
			allRanges = false
			continue
		}
		if ts, ok := t.Statistics(); ok {
			nullRows += st.NullFraction * ts.RowCount
		}
		seg.Distinct += st.DistinctCount
		if !st.HasRange {
			allRanges = false
		} else if !haveStats {
			seg.Min, seg.Max = st.Min, st.Max
		} else {
			seg.Min = math.Min(seg.Min, st.Min)
			seg.Max = math.Max(seg.Max, st.Max)
		}
		haveStats = true
	}
	seg.HasRange = haveStats && allRanges
	seg.NullFraction = nullRows / node.Card
	return nil
}

func (b *builder) buildSubqueries() error {
	q := b.g.Query
	for i := range q.Subqueries {
		sq := &q.Subqueries[i]
		for j := 0; j < i; j++ {
			if q.Subqueries[j].Name == sq.Name {
				return invalidf("duplicate subquery %q", sq.Name)
			}
		}
		s := Subquery{ID: i, Name: sq.Name}
		for _, ref := range sq.Correlated {
			seg, err := b.segment(ref)
			if err != nil {
				return err
			}
			s.Correlated.Add(b.g.Segments[seg].Head)
		}
		// An uncorrelated subquery is evaluated once the whole FROM clause
		// is joined.
		s.Scope = s.Correlated.Copy()
		if s.Scope.Empty() {
			s.Scope = b.g.AllNodes()
		}
		b.g.Subqueries = append(b.g.Subqueries, s)
	}
	return nil
}

func (b *builder) subquery(name string) (int, bool) {
	for i := range b.g.Subqueries {
		if b.g.Subqueries[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (b *builder) buildTerms() error {
	q := b.g.Query
	for i := range q.Where {
		p := &q.Where[i]
		if p.Location < 0 || p.Location >= len(q.Tables) {
			return invalidf("predicate %s has invalid location %d", p, p.Location)
		}
		t := Term{
			ID:       len(b.g.Terms),
			Pred:     p,
			Op:       p.Op,
			Left:     p.Left,
			Right:    p.Right,
			High:     p.High,
			Location: p.Location,
			EqClass:  NoEqClass,
			Head:     -1,
			Target:   -1,
			text:     p.String(),
		}
		switch p.Op {
		case qtree.OpEq, qtree.OpNe, qtree.OpLt, qtree.OpLe, qtree.OpGt, qtree.OpGe:
			if t.Left.Column == nil && t.Right.Column != nil {
				t.Left, t.Right = t.Right, t.Left
				t.Op = t.Op.Commute()
			}
		case qtree.OpExists:
			if t.Right.Subquery == "" {
				t.Left, t.Right = t.Right, t.Left
			}
			if t.Right.Subquery == "" {
				return invalidf("EXISTS predicate without a subquery")
			}
		}
		if p.Op != qtree.OpExists && !t.Left.IsSet() {
			return invalidf("predicate %s has no left operand", p)
		}
		if err := b.buildSide(&t, 0, t.Left); err != nil {
			return err
		}
		if err := b.buildSide(&t, 1, t.Right, t.High); err != nil {
			return err
		}
		if p.Op == qtree.OpPath {
			if t.Sides[0].Seg < 0 {
				return invalidf("path predicate %s must start from a column", p)
			}
			target, ok := b.g.NodeByAlias(p.Target)
			if !ok {
				return invalidf("path predicate %s targets unknown alias %q", p, p.Target)
			}
			t.Head = b.g.Segments[t.Sides[0].Seg].Head
			t.Target = target
			if t.Head == target {
				return invalidf("path predicate %s targets its own table", p)
			}
			t.Sides[1].Nodes.Add(target)
			t.Nodes.Add(target)
		}
		t.Scope = t.Nodes.Copy()
		t.Subqueries.ForEach(func(id int) {
			t.Scope.UnionWith(b.g.Subqueries[id].Correlated)
		})
		b.g.Terms = append(b.g.Terms, t)
	}
	return nil
}

// buildSide records the columns and subqueries of one side of a term.
func (b *builder) buildSide(t *Term, side int, ops ...qtree.Operand) error {
	s := &t.Sides[side]
	s.Seg = -1
	for j, o := range ops {
		if o.Subquery != "" {
			id, ok := b.subquery(o.Subquery)
			if !ok {
				return invalidf("predicate %s references unknown subquery %q", t.text, o.Subquery)
			}
			t.Subqueries.Add(id)
			b.g.Subqueries[id].Terms.Add(t.ID)
		}
		for _, ref := range o.Columns() {
			seg, err := b.segment(ref)
			if err != nil {
				return err
			}
			head := b.g.Segments[seg].Head
			s.Nodes.Add(head)
			t.Nodes.Add(head)
			t.Segments.Add(seg)
			if j == 0 && o.Column != nil {
				s.Seg = seg
			}
		}
	}
	return nil
}

// buildProjection creates the segments of the select list and of the
// GROUP BY and ORDER BY clauses.
func (b *builder) buildProjection() error {
	q := b.g.Query
	for _, refs := range [][]qtree.ColumnRef{q.Select, q.GroupBy, q.OrderBy} {
		for _, ref := range refs {
			if _, err := b.segment(ref); err != nil {
				return err
			}
		}
	}
	for i := range b.g.Nodes {
		node := &b.g.Nodes[i]
		node.Segments.ForEach(func(s int) {
			node.Width += b.g.Segments[s].Width
		})
		if node.Width == 0 {
			node.Width = defaultColumnWidth
		}
	}
	return nil
}

// reduceOuterJoins turns a left outer join into an inner join when a WHERE
// predicate rejects the null-extended rows of its null-supplying node.
func (b *builder) reduceOuterJoins() error {
	for i := range b.g.Nodes {
		node := &b.g.Nodes[i]
		if node.JoinType != qtree.LeftJoin {
			continue
		}
		for j := range b.g.Terms {
			t := &b.g.Terms[j]
			if t.Location != 0 || t.Op == qtree.OpIsNull || !t.Nodes.Contains(i) {
				continue
			}
			log.VEventf(b.ctx, 2, "outer join of %s reduced to inner join by %s", node.Alias, t.text)
			node.JoinType = qtree.InnerJoin
			b.outerDeps[i] = intsets.Fast{}
			b.nullableUntil[i] = -1
			break
		}
	}
	for i := range b.g.Nodes {
		b.g.Nodes[i].Deps = b.outerDeps[i].Union(b.otherDeps[i])
	}
	return b.checkDeps()
}

// checkDeps rejects cyclic dependencies between nodes.
func (b *builder) checkDeps() error {
	var placed intsets.Fast
	for placed.Len() < len(b.g.Nodes) {
		progress := false
		for i := range b.g.Nodes {
			if !placed.Contains(i) && b.g.Nodes[i].Deps.SubsetOf(placed) {
				placed.Add(i)
				progress = true
			}
		}
		if !progress {
			return invalidf("cyclic dependencies between FROM items %s",
				b.g.AllNodes().Difference(placed))
		}
	}
	return nil
}

func (b *builder) classifyTerms() error {
	q := b.g.Query
	for i := range b.g.Terms {
		t := &b.g.Terms[i]
		if t.Op == qtree.OpPath {
			t.Class = PathTerm
			continue
		}
		loc := t.Location
		if loc > 0 && q.Tables[loc].Join != qtree.InnerJoin {
			b.classifyOn(t, loc, q.Tables[loc].Join)
			continue
		}
		b.classifyPlain(t)
		// A WHERE term over a node that can still be null-extended is checked
		// after the outer join.
		last := -1
		t.Nodes.ForEach(func(n int) {
			if b.nullableUntil[n] > last {
				last = b.nullableUntil[n]
			}
		})
		if last >= 0 {
			t.Class = AfterJoinTerm
			t.Scope.AddRange(0, last+1)
		}
	}
	return nil
}

func (b *builder) classifyPlain(t *Term) {
	switch {
	case t.Scope.Empty():
		t.Class = OtherTerm
		t.Scope = b.g.AllNodes()
	case t.Scope.Len() == 1:
		t.Class = SargTerm
	case t.Scope.Len() == 2 && t.Nodes.Len() == 2:
		t.Class = JoinTerm
	default:
		t.Class = DependentTerm
	}
}

// classifyOn classifies an ON-clause term of the outer-joined FROM item at
// position i.
func (b *builder) classifyOn(t *Term, i int, jt qtree.JoinType) {
	nodes := b.g.Nodes
	switch jt {
	case qtree.LeftJoin:
		if !nodes[i].IsOuter() {
			b.classifyPlain(t)
			return
		}
		if !t.Nodes.Contains(i) {
			t.Class = DuringJoinTerm
			t.Scope.Add(i)
			t.JoinType = qtree.LeftJoin
			return
		}
		b.classifyPlain(t)
		if t.Class != SargTerm {
			t.JoinType = qtree.LeftJoin
		}

	case qtree.RightJoin:
		outer := false
		for j := 0; j < i; j++ {
			if nodes[j].IsOuter() && t.Nodes.Contains(j) {
				outer = true
			}
		}
		anyOuter := false
		for j := 0; j < i; j++ {
			anyOuter = anyOuter || nodes[j].IsOuter()
		}
		switch {
		case !t.Nodes.Contains(i):
			b.classifyPlain(t)
		case t.Nodes.Len() == 1 && anyOuter:
			t.Class = DuringJoinTerm
			t.Scope.AddRange(0, i+1)
			t.JoinType = qtree.RightJoin
		default:
			b.classifyPlain(t)
			if outer && t.Class != SargTerm {
				t.JoinType = qtree.LeftJoin
			}
		}

	case qtree.FullJoin:
		if t.Nodes.Len() <= 1 {
			t.Class = DuringJoinTerm
			t.Scope.AddRange(0, i+1)
		} else {
			b.classifyPlain(t)
			if t.Class == DependentTerm {
				t.Scope.AddRange(0, i+1)
			}
		}
		t.JoinType = qtree.FullJoin
	}
}

// buildEqClasses groups the segments connected by equi-join edges into
// equivalence classes, and creates one class per complex merge edge.
func (b *builder) buildEqClasses() error {
	g := b.g
	uf := makeUnionFind(len(g.Segments))
	for i := range g.Terms {
		t := &g.Terms[i]
		if t.Class != JoinTerm || t.Op != qtree.OpEq || !t.Subqueries.Empty() {
			continue
		}
		l, r := t.Sides[0].Seg, t.Sides[1].Seg
		if l >= 0 && r >= 0 && g.Segments[l].Head != g.Segments[r].Head {
			uf.union(l, r)
			t.Mergeable = true
		}
	}
	classOf := make(map[int]EqClassID)
	for s := range g.Segments {
		root := uf.find(s)
		if root == s && !b.hasMergeableMember(&uf, s) {
			continue
		}
		id, ok := classOf[root]
		if !ok {
			id = len(g.EqClasses)
			classOf[root] = id
			g.EqClasses = append(g.EqClasses, EqClass{ID: id, Term: -1})
		}
		ec := &g.EqClasses[id]
		ec.Segments.Add(s)
		ec.Nodes.Add(g.Segments[s].Head)
		g.Segments[s].EqClass = id
	}
	for i := range g.Terms {
		t := &g.Terms[i]
		if t.Mergeable {
			t.EqClass = g.Segments[t.Sides[0].Seg].EqClass
			continue
		}
		if t.Class != JoinTerm || t.Op != qtree.OpEq || !t.Subqueries.Empty() {
			continue
		}
		l, r := t.Sides[0].Nodes, t.Sides[1].Nodes
		if l.Len() == 1 && r.Len() == 1 && !l.Equals(r) {
			id := len(g.EqClasses)
			g.EqClasses = append(g.EqClasses, EqClass{ID: id, Nodes: t.Nodes.Copy(), Term: t.ID})
			t.EqClass = id
			t.Mergeable = true
		}
	}
	return nil
}

// hasMergeableMember returns true if some other segment shares the root s.
func (b *builder) hasMergeableMember(uf *unionFind, s int) bool {
	for o := s + 1; o < len(b.g.Segments); o++ {
		if uf.find(o) == s {
			return true
		}
	}
	return false
}

// buildOrderings resolves the GROUP BY and ORDER BY orderings, creating a
// single-segment equivalence class for a column that is not joined.
func (b *builder) buildOrderings() error {
	q := b.g.Query
	var err error
	if len(q.GroupBy) > 0 {
		b.g.HasGroupBy = true
		b.g.GroupByMulti = len(q.GroupBy) > 1
		if b.g.GroupBy, err = b.orderingClass(q.GroupBy[0]); err != nil {
			return err
		}
	}
	if len(q.OrderBy) > 0 {
		b.g.HasOrderBy = true
		b.g.OrderByMulti = len(q.OrderBy) > 1
		if b.g.OrderBy, err = b.orderingClass(q.OrderBy[0]); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) orderingClass(ref qtree.ColumnRef) (EqClassID, error) {
	seg, err := b.segment(ref)
	if err != nil {
		return NoEqClass, err
	}
	s := &b.g.Segments[seg]
	if s.EqClass == NoEqClass {
		s.EqClass = len(b.g.EqClasses)
		b.g.EqClasses = append(b.g.EqClasses, EqClass{
			ID:       s.EqClass,
			Segments: intsets.MakeFast(seg),
			Nodes:    intsets.MakeFast(s.Head),
			Term:     -1,
		})
	}
	return s.EqClass, nil
}

// addTransitiveTerms adds an equi-join term between every pair of nodes of
// an inner-join equivalence class that no written term connects directly.
func (b *builder) addTransitiveTerms() error {
	if !TransitiveTerms.Get(b.sv) {
		return nil
	}
	g := b.g
	for e := range g.EqClasses {
		ec := &g.EqClasses[e]
		if ec.Term >= 0 || ec.Nodes.Len() < 3 {
			continue
		}
		inner := true
		var connected [][2]NodeID
		for i := range g.Terms {
			t := &g.Terms[i]
			if t.EqClass != e {
				continue
			}
			if t.JoinType != qtree.InnerJoin {
				inner = false
			}
			nodes := t.Nodes.Ordered()
			connected = append(connected, [2]NodeID{nodes[0], nodes[1]})
		}
		ec.Nodes.ForEach(func(n int) {
			if g.Nodes[n].IsOuter() {
				inner = false
			}
		})
		if !inner {
			continue
		}
		isConnected := func(a, b NodeID) bool {
			for _, c := range connected {
				if c[0] == a && c[1] == b {
					return true
				}
			}
			return false
		}
		reps := make(map[NodeID]SegmentID)
		ec.Segments.ForEach(func(s int) {
			if _, ok := reps[g.Segments[s].Head]; !ok {
				reps[g.Segments[s].Head] = s
			}
		})
		nodes := ec.Nodes.Ordered()
		for i, n1 := range nodes {
			for _, n2 := range nodes[i+1:] {
				if isConnected(n1, n2) {
					continue
				}
				g.Terms = append(g.Terms, b.transitiveTerm(reps[n1], reps[n2], e))
			}
		}
	}
	return nil
}

func (b *builder) transitiveTerm(s1, s2 SegmentID, e EqClassID) Term {
	g := b.g
	l := qtree.ColumnRef{Table: g.Nodes[g.Segments[s1].Head].Alias, Column: g.Segments[s1].Name}
	r := qtree.ColumnRef{Table: g.Nodes[g.Segments[s2].Head].Alias, Column: g.Segments[s2].Name}
	n1, n2 := g.Segments[s1].Head, g.Segments[s2].Head
	return Term{
		ID:         len(g.Terms),
		Class:      JoinTerm,
		Op:         qtree.OpEq,
		Left:       qtree.Operand{Column: &l},
		Right:      qtree.Operand{Column: &r},
		Transitive: true,
		Nodes:      intsets.MakeFast(n1, n2),
		Segments:   intsets.MakeFast(s1, s2),
		Scope:      intsets.MakeFast(n1, n2),
		Sides: [2]TermSide{
			{Seg: s1, Nodes: intsets.MakeFast(n1)},
			{Seg: s2, Nodes: intsets.MakeFast(n2)},
		},
		EqClass:   e,
		Mergeable: true,
		Head:      -1,
		Target:    -1,
		text:      l.String() + " = " + r.String(),
	}
}

func (b *builder) computeSelectivities() error {
	g := b.g
	for i := range g.Terms {
		t := &g.Terms[i]
		t.Selectivity = g.termSelectivity(t)
		if t.IsEdge() {
			g.Edges = append(g.Edges, t.ID)
		}
	}
	sort.SliceStable(g.Edges, func(i, j int) bool {
		return g.Terms[g.Edges[i]].Selectivity > g.Terms[g.Edges[j]].Selectivity
	})
	for i := range g.Nodes {
		node := &g.Nodes[i]
		for j := range g.Terms {
			if t := &g.Terms[j]; t.Class == SargTerm && t.Scope.Contains(i) {
				node.Sargs.Add(j)
			}
		}
		node.SargSel = g.CombinedSelectivity(node.Sargs)
	}
	return nil
}

// buildPartitions splits the nodes into the connected components of the
// graph formed by the edges.
func (b *builder) buildPartitions() error {
	g := b.g
	uf := makeUnionFind(len(g.Nodes))
	for _, e := range g.Edges {
		nodes := g.Terms[e].Nodes.Ordered()
		uf.union(nodes[0], nodes[1])
	}
	byRoot := make(map[int]int)
	for n := range g.Nodes {
		root := uf.find(n)
		id, ok := byRoot[root]
		if !ok {
			id = len(g.Partitions)
			byRoot[root] = id
			g.Partitions = append(g.Partitions, Partition{ID: id})
		}
		p := &g.Partitions[id]
		p.Nodes.Add(n)
		p.Deps.UnionWith(g.Nodes[n].Deps)
	}
	for i := range g.Partitions {
		p := &g.Partitions[i]
		p.Deps.DifferenceWith(p.Nodes)
		for _, e := range g.Edges {
			if g.Terms[e].Nodes.SubsetOf(p.Nodes) {
				p.Edges.Add(e)
			}
		}
	}
	return nil
}
