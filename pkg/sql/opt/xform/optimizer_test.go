// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/ordering"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
tables:
  - name: a
    rows: 100
    pages: 2
    columns:
      - {name: k, distinct: 100}
      - {name: x, distinct: 10}
  - name: b
    rows: 100000
    pages: 1000
    columns:
      - {name: k, distinct: 100000}
      - {name: y, distinct: 10}
    indexes:
      - {name: b_k, columns: [k], unique: true}
  - name: c
    rows: 50
    pages: 1
    columns:
      - {name: k, distinct: 50}
  - name: t
    rows: 10000
    pages: 100
    columns:
      - {name: a, distinct: 100, min: 0, max: 100}
    indexes:
      - {name: t_a, columns: [a]}
  - name: emp
    rows: 1000
    pages: 10
    columns:
      - {name: ref, distinct: 100}
      - {name: x, distinct: 10}
  - name: dept
    rows: 100
    pages: 2
    columns:
      - {name: k, distinct: 100}
  - name: hp
    rows: 1000
    pages: 10
    columns:
      - {name: k, distinct: 1000, min: 0, max: 1000}
    indexes:
      - {name: hp_k, columns: [k]}
  - name: hs
    parent: hp
    rows: 3000
    pages: 30
    indexes:
      - {name: hs_k, columns: [k]}
`

func buildGraph(t *testing.T, query string, sv *settings.Values) *joingraph.Graph {
	t.Helper()
	catalog, err := testcat.Load([]byte(testCatalog))
	require.NoError(t, err)
	q, err := qtree.ParseQuery([]byte(query))
	require.NoError(t, err)
	g, err := joingraph.Build(context.Background(), catalog, q, sv)
	require.NoError(t, err)
	return g
}

func optimize(t *testing.T, query string, sv *settings.Values) *Result {
	t.Helper()
	res, err := Optimize(context.Background(), buildGraph(t, query, sv), sv)
	require.NoError(t, err)
	requireCovered(t, res)
	return res
}

// requireCovered checks that the plan accounts for every term exactly once
// and that only the result plan is still allocated.
func requireCovered(t *testing.T, res *Result) {
	t.Helper()
	require.NoError(t, checkCoverage(res.Memo, res.Plan))
	require.Equal(t, 1, res.Memo.Arena().Refs(res.Plan))
	live := 0
	var count func(r memo.PlanRef)
	count = func(r memo.PlanRef) {
		live++
		for _, c := range res.Memo.Plan(r).Op.Children() {
			count(c)
		}
	}
	count(res.Plan)
	require.Equal(t, live, res.Memo.Arena().Live())
}

// newTestOptimizer returns an Optimizer for the graph that has not searched
// any partition yet.
func newTestOptimizer(g *joingraph.Graph, sv *settings.Values) *Optimizer {
	o := &Optimizer{
		ctx:    context.Background(),
		g:      g,
		mem:    memo.New(g, sv),
		params: makeSearchParams(sv),
	}
	o.infos = NewInfoTable(o.mem, o.params.plansRetained, &o.stats)
	return o
}

func nodeID(t *testing.T, g *joingraph.Graph, alias string) joingraph.NodeID {
	t.Helper()
	n, ok := g.NodeByAlias(alias)
	require.True(t, ok, alias)
	return n
}

func rootJoin(t *testing.T, res *Result) *memo.Join {
	t.Helper()
	j, ok := res.Memo.Plan(res.Plan).Op.(*memo.Join)
	require.True(t, ok, "expected a join at the root:\n%s", res.Memo.FormatPlan(res.Plan, memo.FmtShape))
	return j
}

func TestIndexJoinPlan(t *testing.T) {
	res := optimize(t, `
tables: [{alias: a, table: a}, {alias: b, table: b}]
where:
  - {op: eq, left: a.k, right: b.k}
`, nil)
	m := res.Memo
	j := rootJoin(t, res)
	require.Equal(t, memo.IndexJoin, j.Method)

	outer := m.Plan(j.Outer)
	require.Equal(t, "seq-scan a", outer.Op.Describe(m.Graph()))
	inner := m.Plan(j.Inner).Op.(*memo.Scan)
	require.Equal(t, memo.IndexScan, inner.Method)
	require.Equal(t, "b_k", inner.Index.Name())
	require.True(t, inner.Correlated)
	require.True(t, j.JoinTerms.Empty())

	require.InDelta(t, 100, m.Plan(res.Plan).Card, 1e-6)
	require.False(t, res.Cost.IsInfinite())
	require.Less(t, res.Cost.Total(), 1000.0)
	require.Equal(t, 1, res.Stats.ExhaustivePartitions)
}

func TestJoinHints(t *testing.T) {
	res := optimize(t, `
tables:
  - {alias: a, table: a}
  - {alias: b, table: b, hint: nl}
  - {alias: c, table: c, hint: merge}
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: eq, left: b.k, right: c.k}
`, nil)
	m := res.Memo
	g := m.Graph()
	var check func(r memo.PlanRef)
	joins := 0
	check = func(r memo.PlanRef) {
		p := m.Plan(r)
		if j, ok := p.Op.(*memo.Join); ok {
			joins++
			n, _ := m.Plan(j.Inner).Nodes.First()
			require.Equal(t, 1, m.Plan(j.Inner).Nodes.Len())
			switch g.Nodes[n].Alias {
			case "b":
				require.Equal(t, memo.NestedLoopJoin, j.Method)
			case "c":
				require.Equal(t, memo.MergeJoin, j.Method)
			default:
				t.Fatalf("unhinted table %s joined as the inner side", g.Nodes[n].Alias)
			}
		}
		for _, c := range p.Op.Children() {
			check(c)
		}
	}
	check(res.Plan)
	require.Equal(t, 2, joins)
}

func TestRangeIndexScan(t *testing.T) {
	res := optimize(t, `
tables: [{alias: t, table: t}]
where:
  - {op: gt, left: t.a, right: 10}
  - {op: lt, left: t.a, right: 20}
`, nil)
	m := res.Memo
	s, ok := m.Plan(res.Plan).Op.(*memo.Scan)
	require.True(t, ok)
	require.Equal(t, memo.IndexScan, s.Method)
	require.Equal(t, 2, s.KeyRange.Len())
	require.InDelta(t, 42.2, res.Cost.Total(), 0.5)
	require.InDelta(t, 1000, m.Plan(res.Plan).Card, 1e-6)
}

func TestDisconnectedTables(t *testing.T) {
	res := optimize(t, `
tables: [{alias: a, table: a}, {alias: t, table: t}]
`, nil)
	m := res.Memo
	j := rootJoin(t, res)
	require.Equal(t, memo.CartesianJoin, j.Method)
	require.InDelta(t, 100*10000, m.Plan(res.Plan).Card, 1e-3)
	require.Len(t, m.Graph().Partitions, 2)
}

func TestFollowPath(t *testing.T) {
	res := optimize(t, `
tables: [{alias: e, table: emp}, {alias: d, table: dept}]
where:
  - {op: path, left: e.ref, target: d}
  - {op: eq, left: e.x, right: 3}
`, nil)
	m := res.Memo
	p := m.Plan(res.Plan)
	require.Equal(t, memo.FollowKind, p.Kind)
	f := p.Op.(*memo.Follow)
	require.Equal(t, "e", m.Graph().Nodes[m.Plan(f.Input).Nodes.Ordered()[0]].Alias)
	term := &m.Graph().Terms[f.Term]
	require.Equal(t, joingraph.PathTerm, term.Class)
	require.Equal(t, "d", m.Graph().Nodes[term.Target].Alias)
	require.Equal(t, "follow e.ref -> d", f.Describe(m.Graph()))
	// The sarg on e is evaluated by the scan below the follow.
	require.True(t, p.Filters.Empty())
}

func TestFollowPathTargetFilters(t *testing.T) {
	const query = `
tables: [{alias: e, table: emp}, {alias: d, table: dept}]
subqueries:
  - {name: s1, correlated: [d.k]}
where:
  - {op: path, left: e.ref, target: d}
  - {op: eq, left: d.k, right: 3}
`
	// Whatever plan wins, every term and subquery is accounted for.
	optimize(t, query, nil)

	g := buildGraph(t, query, nil)
	o := newTestOptimizer(g, nil)
	e, d := nodeID(t, g, "e"), nodeID(t, g, "d")
	target := o.join(o.scanInfo(e), d)

	var filter joingraph.TermID = -1
	for i := range g.Terms {
		if g.Terms[i].Scope.Equals(intsets.MakeFast(d)) {
			filter = i
		}
	}
	require.NotEqual(t, -1, filter)

	follows := 0
	for _, r := range target.Plans() {
		p := o.mem.Plan(r)
		if p.Kind != memo.FollowKind {
			continue
		}
		follows++
		// The rows reached through the path are filtered like a scan of d.
		require.True(t, p.Filters.Contains(filter), "filters %s", p.Filters)
		require.True(t, p.Subqueries.Contains(0), "subqueries %s", p.Subqueries)
		terms, subqueries, err := Coverage(o.mem, r)
		require.NoError(t, err)
		require.True(t, terms.Equals(g.AllTerms()), "terms %s", terms)
		require.Equal(t, intsets.MakeFast(0), subqueries)
	}
	require.Equal(t, 1, follows)
}

func TestOuterJoinPlan(t *testing.T) {
	res := optimize(t, `
tables: [{alias: a, table: a}, {alias: b, table: b, join: left}]
where:
  - {op: eq, left: a.k, right: b.k, location: 1}
  - {op: gt, left: a.x, right: 5, location: 1}
  - {op: isnull, left: b.y}
`, nil)
	j := rootJoin(t, res)
	require.Equal(t, qtree.LeftJoin, j.JoinType)
	// The preserved side is always the outer input.
	require.Equal(t, "a", res.Graph().Nodes[res.Memo.Plan(j.Outer).Nodes.Ordered()[0]].Alias)
	require.Equal(t, 1, j.DuringTerms.Len())
	require.Equal(t, 1, j.AfterTerms.Len())
}

func TestFullJoinNeedsMerge(t *testing.T) {
	res := optimize(t, `
tables: [{alias: a, table: a}, {alias: c, table: c, join: full}]
where:
  - {op: eq, left: a.k, right: c.k, location: 1}
`, nil)
	require.Equal(t, memo.MergeJoin, rootJoin(t, res).Method)

	g := buildGraph(t, `
tables: [{alias: a, table: a}, {alias: c, table: c, join: full, hint: nl}]
where:
  - {op: eq, left: a.k, right: c.k, location: 1}
`, nil)
	_, err := Optimize(context.Background(), g, nil)
	require.True(t, errors.Is(err, ErrNoPlan), "%v", err)
}

func TestTopLevelSorts(t *testing.T) {
	const join = `
tables: [{alias: a, table: a}, {alias: b, table: b}]
where:
  - {op: eq, left: a.k, right: b.k}
`
	testCases := []struct {
		clauses string
		purpose []memo.SortPurpose
	}{
		{clauses: "", purpose: nil},
		{clauses: "order_by: [a.x]", purpose: []memo.SortPurpose{memo.SortOrderBy}},
		{clauses: "order_by: [a.x, a.k]", purpose: []memo.SortPurpose{memo.SortOrderBy}},
		{clauses: "group_by: [a.x]\norder_by: [a.x]", purpose: []memo.SortPurpose{memo.SortGroupBy}},
		{clauses: "distinct: true\norder_by: [a.x]", purpose: []memo.SortPurpose{memo.SortDistinct}},
		{clauses: "distinct: true", purpose: []memo.SortPurpose{memo.SortDistinct}},
	}
	for _, tc := range testCases {
		t.Run(tc.clauses, func(t *testing.T) {
			res := optimize(t, join+tc.clauses, nil)
			m := res.Memo
			var purposes []memo.SortPurpose
			r := res.Plan
			for {
				s, ok := m.Plan(r).Op.(*memo.Sort)
				if !ok || s.Purpose == memo.SortTemp {
					break
				}
				purposes = append([]memo.SortPurpose{s.Purpose}, purposes...)
				r = s.Input
			}
			require.Equal(t, tc.purpose, purposes)
			g := m.Graph()
			if g.HasOrderBy && !g.OrderByMulti {
				require.True(t, ordering.CanProvide(m, res.Plan, g.OrderBy))
			}
		})
	}
}

func TestSortSkippedWhenOrdered(t *testing.T) {
	res := optimize(t, `
tables: [{alias: t, table: t}]
where:
  - {op: gt, left: t.a, right: 10}
  - {op: lt, left: t.a, right: 20}
order_by: [t.a]
`, nil)
	// The index scan already produces rows in t.a order.
	p := res.Memo.Plan(res.Plan)
	require.Equal(t, memo.ScanKind, p.Kind)
	require.Equal(t, res.Graph().OrderBy, res.Order)
}

func TestChainedIndexNotOrdered(t *testing.T) {
	res := optimize(t, `
tables: [{alias: x, table: hp}]
where:
  - {op: lt, left: x.k, right: 10}
order_by: [x.k]
`, nil)
	m := res.Memo
	g := res.Graph()
	e := g.Nodes[0].Indexes[0]
	require.Len(t, e.Chain, 2)
	require.False(t, e.ProvidesOrder())

	// Each class of the hierarchy is read in key order separately, so the
	// concatenated rows still need a sort.
	scan := m.NewIndexScan(e, intsets.MakeFast(0), 1, intsets.Fast{}, memo.Residual{})
	require.Equal(t, joingraph.NoEqClass, m.Plan(scan).Order)
	require.False(t, ordering.CanProvide(m, scan, g.OrderBy))
	m.Discard(scan)

	require.Equal(t, memo.SortKind, m.Plan(res.Plan).Kind)
	require.Equal(t, g.OrderBy, res.Order)
	require.NoError(t, ordering.Check(m, res.Plan))
	require.True(t, ordering.CanProvide(m, res.Plan, g.OrderBy))
}

func TestDominantFirstNodes(t *testing.T) {
	// b and c are not adjacent, and the scan of c dominates the scan of b.
	const query = `
tables: [{alias: a, table: a}, {alias: b, table: b}, {alias: c, table: c}]
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: eq, left: a.x, right: c.k}
`
	testCases := []struct {
		enabled string
		first   []string
	}{
		{enabled: "true", first: []string{"a", "c"}},
		{enabled: "false", first: []string{"a", "b", "c"}},
	}
	for _, tc := range testCases {
		t.Run(tc.enabled, func(t *testing.T) {
			var sv settings.Values
			require.NoError(t, sv.Set(DominantFirstNodes.Key(), tc.enabled))
			g := buildGraph(t, query, &sv)
			require.Len(t, g.Partitions, 1)
			o := newTestOptimizer(g, &sv)
			part := &g.Partitions[0]
			part.Nodes.ForEach(func(n int) {
				o.scanInfo(n)
			})
			s := partitionSearch{o: o, ctx: o.ctx, part: part}
			var expected intsets.Fast
			for _, alias := range tc.first {
				expected.Add(nodeID(t, g, alias))
			}
			require.Equal(t, expected.String(), s.firstNodes().String())

			res := optimize(t, query, &sv)
			require.True(t, res.Memo.Plan(res.Plan).Nodes.Equals(g.AllNodes()))
		})
	}
}

func TestGreedyFallback(t *testing.T) {
	// z is only joined through an index join on z.k, which needs a among the
	// outer tables. A greedy order starting from c stalls.
	const query = `
tables:
  - {alias: a, table: a}
  - {alias: c, table: c}
  - {alias: z, table: b, hint: idx}
where:
  - {op: eq, left: a.k, right: z.k}
  - {op: eq, left: c.k, right: z.y}
`
	for _, dominant := range []string{"true", "false"} {
		t.Run(dominant, func(t *testing.T) {
			var sv settings.Values
			require.NoError(t, sv.Set(TablesConsideredTogether.Key(), "2"))
			require.NoError(t, sv.Set(DominantFirstNodes.Key(), dominant))
			res := optimize(t, query, &sv)
			require.Equal(t, 1, res.Stats.GreedyPartitions)
			require.Equal(t, 1, res.Stats.GreedyFallbacks)
			require.True(t, res.Memo.Plan(res.Plan).Nodes.Equals(res.Graph().AllNodes()))

			// z is index joined to a before c is joined.
			m := res.Memo
			g := res.Graph()
			j := rootJoin(t, res)
			require.Equal(t, intsets.MakeFast(nodeID(t, g, "c")), m.Plan(j.Inner).Nodes)
			outer := j.Outer
			for {
				s, ok := m.Plan(outer).Op.(*memo.Sort)
				if !ok {
					break
				}
				outer = s.Input
			}
			lookup, ok := m.Plan(outer).Op.(*memo.Join)
			require.True(t, ok)
			require.Equal(t, memo.IndexJoin, lookup.Method)
			require.Equal(t, intsets.MakeFast(nodeID(t, g, "z")), m.Plan(lookup.Inner).Nodes)
		})
	}
}

func TestGreedySearch(t *testing.T) {
	var sv settings.Values
	require.NoError(t, sv.Set(TablesConsideredTogether.Key(), "2"))
	const query = `
tables:
  - {alias: a, table: a}
  - {alias: b, table: b}
  - {alias: c, table: c}
  - {alias: e, table: emp}
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: eq, left: a.x, right: c.k}
  - {op: eq, left: c.k, right: e.x}
`
	greedy := optimize(t, query, &sv)
	require.Equal(t, 1, greedy.Stats.GreedyPartitions)
	require.Equal(t, 0, greedy.Stats.ExhaustivePartitions)
	require.True(t, greedy.Memo.Plan(greedy.Plan).Nodes.Equals(greedy.Graph().AllNodes()))

	exhaustive := optimize(t, query, nil)
	require.Equal(t, 1, exhaustive.Stats.ExhaustivePartitions)
	// Enumerating every order never does worse than committing greedily.
	require.LessOrEqual(t, exhaustive.Cost.Total(), greedy.Cost.Total()+1e-9)
}

func TestOrderedHint(t *testing.T) {
	res := optimize(t, `
tables: [{alias: b, table: b}, {alias: a, table: a}]
where:
  - {op: eq, left: a.k, right: b.k}
hints: {ordered: true}
`, nil)
	j := rootJoin(t, res)
	require.Equal(t, "b", res.Graph().Nodes[res.Memo.Plan(j.Outer).Nodes.Ordered()[0]].Alias)
}

func TestSubqueryPlacement(t *testing.T) {
	res := optimize(t, `
tables: [{alias: a, table: a}, {alias: b, table: b}]
subqueries:
  - {name: s1, correlated: [b.y]}
  - {name: s2}
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: eq, left: a.x, right: $s1}
`, nil)
	terms, subqueries, err := Coverage(res.Memo, res.Plan)
	require.NoError(t, err)
	require.True(t, terms.Equals(res.Graph().AllTerms()))
	require.Equal(t, 1, subqueries.Len())
}

func TestIdempotent(t *testing.T) {
	const query = `
tables:
  - {alias: a, table: a}
  - {alias: b, table: b}
  - {alias: c, table: c}
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: eq, left: b.k, right: c.k}
  - {op: gt, left: a.x, right: 2}
order_by: [b.k]
`
	first := optimize(t, query, nil)
	second := optimize(t, query, nil)
	require.Equal(t, first.Cost, second.Cost)
	require.Equal(t,
		first.Memo.FormatPlan(first.Plan, memo.FmtAll),
		second.Memo.FormatPlan(second.Plan, memo.FmtAll))
	require.Equal(t, first.Stats, second.Stats)
}

func TestPlansRetainedSetting(t *testing.T) {
	var sv settings.Values
	require.NoError(t, sv.Set(PlansRetained.Key(), "1"))
	res := optimize(t, `
tables: [{alias: a, table: a}, {alias: b, table: b}, {alias: c, table: c}]
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: eq, left: a.x, right: c.k}
`, &sv)
	require.False(t, res.Cost.IsInfinite())
	require.Greater(t, res.Stats.PlansRejected, 0)
}
