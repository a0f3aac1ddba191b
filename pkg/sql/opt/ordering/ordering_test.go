// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package ordering

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
tables:
  - name: a
    rows: 1000
    columns:
      - {name: k, distinct: 1000}
      - {name: x, distinct: 10}
    indexes:
      - {name: a_k, columns: [k]}
      - {name: a_x, columns: [x]}
  - name: b
    rows: 5000
    columns:
      - {name: k, distinct: 1000}
`

func newTestMemo(t *testing.T) *memo.Memo {
	t.Helper()
	catalog, err := testcat.Load([]byte(testCatalog))
	require.NoError(t, err)
	q, err := qtree.ParseQuery([]byte(`
tables: [{alias: a, table: a}, {alias: b, table: b}]
where:
  - {op: eq, left: a.k, right: b.k}
  - {op: gt, left: a.x, right: 3}
order_by: [a.x]
`))
	require.NoError(t, err)
	g, err := joingraph.Build(context.Background(), catalog, q, nil)
	require.NoError(t, err)
	return memo.New(g, nil)
}

func TestCanProvide(t *testing.T) {
	m := newTestMemo(t)
	g := m.Graph()
	joinClass := g.Terms[0].EqClass
	xClass := g.OrderBy
	require.NotEqual(t, joinClass, xClass)

	indexes := g.Nodes[0].Indexes
	require.Len(t, indexes, 2)
	byK := m.NewIndexScan(indexes[0], intsets.Fast{}, 0, intsets.Fast{}, memo.Residual{})
	byX := m.NewIndexScan(indexes[1], intsets.MakeFast(1), 1, intsets.Fast{}, memo.Residual{})
	seqA := m.NewSeqScan(0, memo.Residual{})
	seqB := m.NewSeqScan(1, memo.Residual{})

	require.True(t, CanProvide(m, byK, joinClass))
	require.False(t, CanProvide(m, byK, xClass))
	require.True(t, CanProvide(m, byX, xClass))
	require.False(t, CanProvide(m, seqA, joinClass))
	require.True(t, CanProvide(m, seqA, joingraph.NoEqClass))

	sortB := m.NewSort(seqB, memo.SortTemp, joinClass, false)
	require.True(t, CanProvide(m, sortB, joinClass))

	merge := m.NewJoin(memo.JoinSpec{
		Method:    memo.MergeJoin,
		Outer:     byK,
		Inner:     sortB,
		JoinTerms: intsets.MakeFast(0),
		MergeTerm: 0,
	})
	require.True(t, CanProvide(m, merge, joinClass))
	require.NoError(t, Check(m, merge))

	// A nested loop join keeps the order of its outer input.
	nl := m.NewJoin(memo.JoinSpec{
		Method:    memo.NestedLoopJoin,
		Outer:     byX,
		Inner:     seqB,
		JoinTerms: intsets.MakeFast(0),
	})
	require.True(t, CanProvide(m, nl, xClass))
	require.False(t, CanProvide(m, nl, joinClass))
	require.True(t, CanSkipSort(m, nl, xClass, false))
	require.False(t, CanSkipSort(m, nl, xClass, true))
	require.False(t, CanSkipSort(m, nl, joinClass, false))
	require.NoError(t, Check(m, nl))

	// A merge join over an unordered input does not provide its order.
	bad := m.NewJoin(memo.JoinSpec{
		Method:    memo.MergeJoin,
		Outer:     byK,
		Inner:     seqB,
		JoinTerms: intsets.MakeFast(0),
		MergeTerm: 0,
	})
	require.False(t, CanProvide(m, bad, joinClass))
	err := Check(m, bad)
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))

	worst := m.Worst(intsets.MakeFast(1))
	require.False(t, CanProvide(m, worst, joinClass))
}
