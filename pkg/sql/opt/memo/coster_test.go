// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"context"
	"math"
	"testing"

	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
tables:
  - name: t
    rows: 10000
    pages: 100
    columns:
      - {name: a, distinct: 100, min: 0, max: 100}
    indexes:
      - {name: t_a, columns: [a]}
  - name: small
    rows: 100
    pages: 2
    columns:
      - {name: k, distinct: 100}
      - {name: ref}
  - name: big
    rows: 100000
    pages: 1000
    columns:
      - {name: k, distinct: 100000}
    indexes:
      - {name: big_k, columns: [k], unique: true}
`

func newTestMemo(t *testing.T, query string, sv *settings.Values) *Memo {
	t.Helper()
	catalog, err := testcat.Load([]byte(testCatalog))
	require.NoError(t, err)
	q, err := qtree.ParseQuery([]byte(query))
	require.NoError(t, err)
	g, err := joingraph.Build(context.Background(), catalog, q, sv)
	require.NoError(t, err)
	return New(g, sv)
}

func requireCost(t *testing.T, expected, actual Cost) {
	t.Helper()
	require.InDelta(t, expected.FixedCPU, actual.FixedCPU, 1e-6, "fixed cpu")
	require.InDelta(t, expected.FixedIO, actual.FixedIO, 1e-6, "fixed io")
	require.InDelta(t, expected.VarCPU, actual.VarCPU, 1e-6, "var cpu")
	require.InDelta(t, expected.VarIO, actual.VarIO, 1e-6, "var io")
}

func TestPageFraction(t *testing.T) {
	testCases := []struct {
		sel, expected float64
	}{
		{0, 0},
		{0.01, 0.05},
		{0.05, 0.25},
		{0.1, 0.25 + 0.05*0.35/0.15},
		{0.5, 0.9},
		{0.8, 1},
		{0.95, 1},
		{1, 1},
	}
	for _, tc := range testCases {
		require.InDelta(t, tc.expected, pageFraction(tc.sel), 1e-9, "sel=%g", tc.sel)
	}
	// The mapping is monotonic.
	prev := 0.0
	for s := 0.0; s <= 1; s += 0.01 {
		f := pageFraction(s)
		require.GreaterOrEqual(t, f, prev)
		prev = f
	}
}

func TestScanCosts(t *testing.T) {
	m := newTestMemo(t, `
tables: [{alias: t, table: t}]
where:
  - {op: gt, left: t.a, right: 10}
  - {op: lt, left: t.a, right: 20}
`, nil)
	seq := m.NewSeqScan(0, Residual{Filters: intsets.MakeFast(0, 1)})
	requireCost(t, Cost{VarCPU: 25, VarIO: 100}, m.Plan(seq).Cost)
	require.InDelta(t, 1000, m.Plan(seq).Card, 1e-6)

	// Both range terms bound the key of t_a: 10% of the rows, 2 index
	// levels and 10 leaf pages.
	e := m.Graph().Nodes[0].Indexes[0]
	keyRange, prefix := e.KeyRange(intsets.MakeFast(0, 1), intsets.Fast{})
	require.Equal(t, intsets.MakeFast(0, 1), keyRange)
	idx := m.NewIndexScan(e, keyRange, prefix, intsets.Fast{}, Residual{})
	p := m.Plan(idx)
	requireCost(t, Cost{FixedIO: 3, VarCPU: 2.5, VarIO: 100 * pageFraction(0.1)}, p.Cost)
	require.Less(t, p.Cost.Total(), m.Plan(seq).Cost.Total())
	require.False(t, p.Op.(*Scan).Correlated)
	require.Equal(t, e.Order, p.Order)
	require.Equal(t, "index-scan t@t_a range=[t.a > 10, t.a < 20]", p.Op.Describe(m.Graph()))
	// The index scan trades a fixed cost for a lower variable cost.
	require.Equal(t, Incomparable, m.Compare(idx, seq))

	// A full index scan reads every leaf and heap page.
	full := m.NewIndexScan(e, intsets.Fast{}, 0, intsets.Fast{}, Residual{})
	requireCost(t, Cost{FixedIO: 12, VarCPU: 25, VarIO: 100}, m.Plan(full).Cost)
	require.Equal(t, Less, m.Compare(full, seq))
}

func TestIndexHintCosts(t *testing.T) {
	forced := newTestMemo(t, `
tables: [{alias: t, table: t}]
select: [t.a]
hints:
  indexes: [{table: t, indexes: ["t_a(+)"]}]
`, nil)
	e := forced.Graph().Nodes[0].Indexes[0]
	require.True(t, e.Force)
	r := forced.NewIndexScan(e, intsets.Fast{}, 0, intsets.Fast{}, Residual{})
	requireCost(t, Cost{}, forced.Plan(r).Cost)

	excluded := newTestMemo(t, `
tables: [{alias: t, table: t}]
select: [t.a]
hints:
  indexes: [{table: t, indexes: ["t_a(-)"]}]
`, nil)
	e = excluded.Graph().Nodes[0].Indexes[0]
	require.True(t, e.Exclude)
	r = excluded.NewIndexScan(e, intsets.Fast{}, 0, intsets.Fast{}, Residual{})
	require.True(t, excluded.Plan(r).Cost.IsInfinite())
	require.Equal(t, joingraph.NoEqClass, excluded.Plan(r).Order)
}

func TestSortCosts(t *testing.T) {
	m := newTestMemo(t, `
tables: [{alias: t, table: t}]
order_by: [t.a]
`, nil)
	order := m.Graph().OrderBy
	require.NotEqual(t, joingraph.NoEqClass, order)

	seq := m.NewSeqScan(0, Residual{})
	sort := m.NewSort(seq, SortTemp, order, false)
	// 10000 rows of 8 bytes fit in 5 pages, under the sort buffer.
	n := 10000.0
	expected := Cost{
		FixedCPU: 25 + 1 + n*math.Log2(n)*0.0025,
		FixedIO:  100,
		VarCPU:   25,
		VarIO:    5,
	}
	requireCost(t, expected, m.Plan(sort).Cost)
	require.Equal(t, order, m.Plan(sort).Order)
	require.Zero(t, m.Plan(sort).Top)

	// A second sort on the same class is elided.
	top := m.NewSort(sort, SortOrderBy, order, false)
	requireCost(t, expected, m.Plan(top).Cost)
	require.Equal(t, OrderByDone, m.Plan(top).Top)

	// An input already in order only pays for materialization.
	idx := m.NewIndexScan(m.Graph().Nodes[0].Indexes[0], intsets.Fast{}, 0, intsets.Fast{}, Residual{})
	mat := m.NewSort(idx, SortOrderBy, order, false)
	requireCost(t, Cost{FixedCPU: 25 + 1, FixedIO: 112, VarCPU: 25, VarIO: 5}, m.Plan(mat).Cost)

	// A multi-column sort always sorts.
	multi := m.NewSort(idx, SortOrderBy, order, true)
	require.Greater(t, m.Plan(multi).Cost.FixedCPU, m.Plan(mat).Cost.FixedCPU)
}

func TestExternalSortCost(t *testing.T) {
	var sv settings.Values
	require.NoError(t, sv.Set(SortBufferPages.Key(), "2"))
	require.NoError(t, sv.Set(BufferPages.Key(), "4"))
	m := newTestMemo(t, `
tables: [{alias: t, table: t}]
order_by: [t.a]
`, &sv)
	seq := m.NewSeqScan(0, Residual{})
	sort := m.NewSort(seq, SortOrderBy, m.Graph().OrderBy, false)
	// 5 pages in 2-page runs, merged two at a time: 2 passes over the data,
	// discounted for the 4 pages held by the buffer pool.
	n := 10000.0
	requireCost(t, Cost{
		FixedCPU: 25 + 1 + n*math.Log2(n)*0.0025,
		FixedIO:  100 + 2*5*2*(1-0.5*0.8),
		VarCPU:   25,
		VarIO:    5,
	}, m.Plan(sort).Cost)
}

func TestJoinCosts(t *testing.T) {
	m := newTestMemo(t, `
tables: [{alias: s, table: small}, {alias: b, table: big}]
where:
  - {op: eq, left: s.k, right: b.k}
`, nil)
	outer := m.NewSeqScan(0, Residual{})
	inner := m.NewSeqScan(1, Residual{})
	requireCost(t, Cost{VarCPU: 0.25, VarIO: 2}, m.Plan(outer).Cost)

	nl := m.NewJoin(JoinSpec{
		Method:    NestedLoopJoin,
		Outer:     outer,
		Inner:     inner,
		JoinTerms: intsets.MakeFast(0),
	})
	// The inner scan is read once per outer row, capped at twice its size.
	requireCost(t, Cost{
		VarCPU: 0.25 + 100*250 + 100*100000*0.0025,
		VarIO:  2 + 2000,
	}, m.Plan(nl).Cost)
	require.Equal(t, intsets.MakeFast(0, 1), m.Plan(nl).Nodes)
	require.InDelta(t, 100, m.Plan(nl).Card, 1e-6)

	merge := m.NewJoin(JoinSpec{
		Method:    MergeJoin,
		Outer:     outer,
		Inner:     inner,
		JoinTerms: intsets.MakeFast(0),
		MergeTerm: 0,
	})
	requireCost(t, Cost{
		FixedCPU: 0.25 + 250,
		FixedIO:  2 + 1000,
		VarCPU:   (100+100000)*0.0025 + 100*100000*1e-5*0.0025,
	}, m.Plan(merge).Cost)
	require.Equal(t, 0, m.Plan(merge).Order)

	e := m.Graph().Nodes[1].Indexes[0]
	probe := m.NewIndexScan(e, intsets.MakeFast(0), 1, intsets.Fast{}, Residual{})
	require.True(t, m.Plan(probe).Op.(*Scan).Correlated)
	probeCost := m.Plan(probe).Cost
	idx := m.NewJoin(JoinSpec{
		Method:    IndexJoin,
		Outer:     outer,
		Inner:     probe,
		JoinTerms: intsets.MakeFast(0),
	})
	requireCost(t, Cost{
		VarCPU: 0.25 + 100*probeCost.CPU(),
		VarIO:  2 + 100*probeCost.IO(),
	}, m.Plan(idx).Cost)
	require.Less(t, m.Plan(idx).Cost.Total(), m.Plan(merge).Cost.Total())
	require.Less(t, m.Plan(merge).Cost.Total(), m.Plan(nl).Cost.Total())

	// Either input with infinite cost makes the join infinite.
	worst := m.Worst(intsets.MakeFast(1))
	require.True(t, m.Plan(m.NewJoin(JoinSpec{
		Method: NestedLoopJoin, Outer: outer, Inner: worst,
	})).Cost.IsInfinite())

	require.Panics(t, func() {
		m.NewJoin(JoinSpec{Method: NestedLoopJoin, Outer: outer, Inner: outer})
	})
}

func TestOuterJoinPenalty(t *testing.T) {
	m := newTestMemo(t, `
tables: [{alias: s, table: small}, {alias: b, table: big, join: left}]
where:
  - {op: eq, left: s.k, right: b.k, location: 1}
`, nil)
	outer := m.NewSeqScan(0, Residual{})
	inner := m.NewSeqScan(1, Residual{})
	inl := m.NewJoin(JoinSpec{
		Method: NestedLoopJoin, Outer: outer, Inner: inner, DuringTerms: intsets.MakeFast(0),
	})
	onl := m.NewJoin(JoinSpec{
		Method: NestedLoopJoin, Outer: outer, Inner: inner, DuringTerms: intsets.MakeFast(0),
		JoinType: qtree.LeftJoin,
	})
	require.InDelta(t, 100*0.0025, m.Plan(onl).Cost.VarCPU-m.Plan(inl).Cost.VarCPU, 1e-9)
}

func TestFollowCost(t *testing.T) {
	var sv settings.Values
	require.NoError(t, sv.Set(BufferPages.Key(), "500"))
	m := newTestMemo(t, `
tables: [{alias: s, table: small}, {alias: b, table: big}]
where:
  - {op: path, left: s.ref, target: b}
`, &sv)
	require.Equal(t, joingraph.PathTerm, m.Graph().Terms[0].Class)
	in := m.NewSeqScan(0, Residual{})
	f := m.NewFollow(in, 0, Residual{})
	// Half of the target does not fit in the buffer pool.
	requireCost(t, Cost{VarCPU: 0.25 + 100*0.0025, VarIO: 2 + 50}, m.Plan(f).Cost)
	require.Equal(t, intsets.MakeFast(0, 1), m.Plan(f).Nodes)
	require.Equal(t, intsets.MakeFast(0), m.Plan(f).Terms())
}

func TestPreferOnTie(t *testing.T) {
	m := newTestMemo(t, `
tables: [{alias: t, table: t}]
where:
  - {op: gt, left: t.a, right: 10}
`, nil)
	e := m.Graph().Nodes[0].Indexes[0]
	bounded := m.NewIndexScan(e, intsets.MakeFast(0), 1, intsets.Fast{}, Residual{})
	filtered := m.NewIndexScan(e, intsets.Fast{}, 0, intsets.MakeFast(0), Residual{})
	same := m.NewIndexScan(e, intsets.MakeFast(0), 1, intsets.Fast{}, Residual{})
	seq := m.NewSeqScan(0, Residual{})

	// Equal term sets fall back to the leaf page visits.
	require.True(t, m.PreferOnTie(bounded, filtered))
	require.False(t, m.PreferOnTie(filtered, bounded))
	require.False(t, m.PreferOnTie(bounded, same))
	require.False(t, m.PreferOnTie(bounded, seq))
}
