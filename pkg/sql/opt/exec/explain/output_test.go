// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/qplan/pkg/sql/opt/exec/explain"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/qplan/pkg/sql/opt/xform"
	"github.com/stretchr/testify/require"
)

const catalog = `
tables:
  - name: a
    rows: 100
    pages: 2
    columns:
      - {name: k, distinct: 100}
  - name: b
    rows: 100000
    pages: 1000
    columns:
      - {name: k, distinct: 100000}
      - {name: y, distinct: 10}
    indexes:
      - {name: b_k, columns: [k], unique: true}
`

const query = `
tables: [{alias: a, table: a}, {alias: x, table: b}]
where:
  - {op: eq, left: a.k, right: x.k}
  - {op: eq, left: x.y, right: 3}
`

func optimize(t *testing.T) *xform.Result {
	t.Helper()
	ctx := context.Background()
	cat, err := testcat.Load([]byte(catalog))
	require.NoError(t, err)
	q, err := qtree.ParseQuery([]byte(query))
	require.NoError(t, err)
	g, err := joingraph.Build(ctx, cat, q, nil)
	require.NoError(t, err)
	res, err := xform.Optimize(ctx, g, nil)
	require.NoError(t, err)
	return res
}

func TestOutputBuilder(t *testing.T) {
	ob := explain.NewOutputBuilder(explain.Flags{})
	ob.AddField("cost", "12")
	ob.EnterNode("join")
	ob.AddField("type", "left outer")
	{
		ob.EnterNode("scan")
		ob.AddField("table", "foo")
		ob.LeaveNode()
	}
	{
		ob.EnterNode("scan")
		ob.AddField("table", "bar")
		ob.LeaveNode()
	}
	ob.LeaveNode()

	expected := `cost: 12
• join
├── type: left outer
├── • scan
│   └── table: foo
└── • scan
    └── table: bar
`
	require.Equal(t, expected, ob.BuildString())
}

func TestOutputBuilderUnbalanced(t *testing.T) {
	ob := explain.NewOutputBuilder(explain.Flags{})
	ob.EnterNode("scan")
	require.Panics(t, func() { ob.BuildString() })
	ob.LeaveNode()
	require.Panics(t, func() { ob.LeaveNode() })
}

func TestFormat(t *testing.T) {
	res := optimize(t)

	shape := explain.Format(res, explain.Flags{OnlyShape: true, Deflake: explain.DeflakeAll})
	require.Equal(t, "• idx-join\n├── • seq-scan\n└── • index-scan\n", shape)

	out := explain.Format(res, explain.Flags{})
	require.True(t, strings.HasPrefix(out, "cost: "), out)
	require.Contains(t, out, "table: a\n")
	require.Contains(t, out, "table: b as x@b_k")
	require.Contains(t, out, "lookup: per outer row")
	require.Contains(t, out, "estimated row count: 10\n")
	require.NotContains(t, out, "size:")

	verbose := explain.Format(res, explain.Flags{Verbose: true})
	require.Contains(t, verbose, "fixed ")
	require.Contains(t, verbose, "size: ")
	require.Contains(t, verbose, "search: ")

	hidden := explain.Format(res, explain.Flags{HideValues: true})
	require.Contains(t, hidden, "1 term")
	require.NotContains(t, hidden, "x.y")

	redacted := explain.Format(res, explain.Flags{RedactValues: true})
	require.Contains(t, redacted, "‹×›")
	require.NotContains(t, redacted, "x.y")
}

func TestFormatMemo(t *testing.T) {
	res := optimize(t)
	out := explain.FormatMemo(res)
	for _, s := range []string{"best cost", "retained", "(0,1)", "a,x", "plans created"} {
		require.Contains(t, out, s)
	}
	// One row per Info, in node-set order.
	require.Less(t, strings.Index(out, "(0)"), strings.Index(out, "(1)"))
	require.Less(t, strings.Index(out, "(1)"), strings.Index(out, "(0,1)"))
}

func TestFormatGraph(t *testing.T) {
	res := optimize(t)
	out := explain.FormatGraph(res.Graph())
	for _, s := range []string{"alias", "b_k", "predicate", "eqclass", "a.k=x.k", "partition"} {
		require.Contains(t, out, s)
	}
}

func TestMakeFlags(t *testing.T) {
	testCases := []struct {
		options  []string
		expected explain.Flags
		err      string
	}{
		{options: nil, expected: explain.Flags{}},
		{options: []string{"verbose"}, expected: explain.Flags{Verbose: true}},
		{options: []string{"SHAPE"}, expected: explain.Flags{OnlyShape: true, Deflake: explain.DeflakeAll}},
		{options: []string{"redact", "deflake"}, expected: explain.Flags{RedactValues: true, Deflake: explain.DeflakeAll}},
		{options: []string{"hide-values"}, expected: explain.Flags{HideValues: true}},
		{options: []string{"verbose", "redact"}, err: "cannot be combined"},
		{options: []string{"types"}, err: `unknown explain option "types"`},
	}
	for _, tc := range testCases {
		t.Run(strings.Join(tc.options, ","), func(t *testing.T) {
			f, err := explain.MakeFlags(tc.options)
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, f)
		})
	}
}
