// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testutils

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/exec/explain"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/memo"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/qplan/pkg/sql/opt/xform"
)

// OptTester is a helper for testing the various optimizer components. It
// contains the boiler-plate code for the following useful tasks:
//   - Load tables into the test catalog
//   - Build the join graph of a query
//   - Optimize a query and format the chosen plan
//   - Format the Infos created by the search
//
// The OptTester is used by tests in various sub-packages of the opt package.
type OptTester struct {
	Flags OptTesterFlags

	catalog *testcat.Catalog
	query   string
	ctx     context.Context
}

// OptTesterFlags are control knobs for tests. Note that specific testcases can
// override these defaults.
type OptTesterFlags struct {
	// PlanFormat controls the output detail of plan command directives.
	PlanFormat memo.FmtFlags

	// Explain controls the output of explain command directives.
	Explain explain.Flags

	// Settings overrides the optimizer settings for the run.
	Settings settings.Values
}

// NewOptTester constructs a new instance of the OptTester for the given
// query, written in YAML. Tables used by the query are resolved in the
// catalog.
func NewOptTester(catalog *testcat.Catalog, query string) *OptTester {
	return &OptTester{
		catalog: catalog,
		query:   query,
		ctx:     context.Background(),
		Flags:   OptTesterFlags{PlanFormat: memo.FmtShape},
	}
}

// RunCommand implements commands that are used by most tests:
//
//   - exec-catalog
//
//     Adds the tables described by the input to the catalog.
//
//   - graph
//
//     Builds the join graph of the query and prints it.
//
//   - plan [format=...]
//
//     Optimizes the query and prints the chosen plan tree.
//
//   - explain [opts=...]
//
//     Optimizes the query and prints the chosen plan as EXPLAIN would.
//
//   - memo
//
//     Optimizes the query and prints every Info created by the search.
//
// Supported arguments:
//
//   - format: controls the output detail of the plan command; any of cost,
//     card, order, terms, all or shape.
//
//   - opts: explain options; see explain.MakeFlags.
//
//   - set: overrides optimizer settings, as a list of key=value pairs.
func (ot *OptTester) RunCommand(tb testing.TB, d *datadriven.TestData) string {
	// Allow testcases to override the flags.
	for _, a := range d.CmdArgs {
		if err := ot.Flags.Set(a); err != nil {
			d.Fatalf(tb, "%+v", err)
		}
	}

	switch d.Cmd {
	case "exec-catalog":
		if err := ot.catalog.ExecuteYAML([]byte(d.Input)); err != nil {
			d.Fatalf(tb, "%+v", err)
		}
		return ""

	case "graph":
		g, err := ot.BuildGraph()
		if err != nil {
			return formatError(err)
		}
		return g.String()

	case "plan":
		res, err := ot.Optimize()
		if err != nil {
			return formatError(err)
		}
		return res.Memo.FormatPlan(res.Plan, ot.Flags.PlanFormat)

	case "explain":
		res, err := ot.Optimize()
		if err != nil {
			return formatError(err)
		}
		return explain.Format(res, ot.Flags.Explain)

	case "memo":
		res, err := ot.Optimize()
		if err != nil {
			return formatError(err)
		}
		return explain.FormatMemo(res)

	default:
		d.Fatalf(tb, "unsupported command: %s", d.Cmd)
		return ""
	}
}

func formatError(err error) string {
	return fmt.Sprintf("error: %s\n", strings.TrimSpace(err.Error()))
}

// Set parses an argument that refers to a flag.
// See OptTester.RunCommand for supported flags.
func (f *OptTesterFlags) Set(arg datadriven.CmdArg) error {
	switch arg.Key {
	case "format":
		if len(arg.Vals) == 0 {
			return errors.New("format flag requires value(s)")
		}
		f.PlanFormat = memo.FmtShape
		for _, v := range arg.Vals {
			m := map[string]memo.FmtFlags{
				"cost":  memo.FmtCost,
				"card":  memo.FmtCard,
				"order": memo.FmtOrder,
				"terms": memo.FmtTerms,
				"all":   memo.FmtAll,
				"shape": memo.FmtShape,
			}
			val, ok := m[v]
			if !ok {
				return errors.Newf("unknown format value %s", v)
			}
			f.PlanFormat |= val
		}

	case "opts":
		flags, err := explain.MakeFlags(arg.Vals)
		if err != nil {
			return err
		}
		f.Explain = flags

	case "set":
		if len(arg.Vals) == 0 {
			return errors.New("set requires key=value arguments")
		}
		for _, v := range arg.Vals {
			key, val, ok := strings.Cut(v, "=")
			if !ok {
				return errors.Newf("invalid setting %q, expected key=value", v)
			}
			if err := f.Settings.Set(key, val); err != nil {
				return err
			}
		}

	default:
		return errors.Newf("unknown argument: %s", arg.Key)
	}
	return nil
}

// BuildGraph parses the query and builds its join graph.
func (ot *OptTester) BuildGraph() (*joingraph.Graph, error) {
	q, err := qtree.ParseQuery([]byte(ot.query))
	if err != nil {
		return nil, err
	}
	return joingraph.Build(ot.ctx, ot.catalog, q, &ot.Flags.Settings)
}

// Optimize builds the join graph of the query and finds its cheapest plan.
func (ot *OptTester) Optimize() (*xform.Result, error) {
	g, err := ot.BuildGraph()
	if err != nil {
		return nil, err
	}
	return xform.Optimize(ot.ctx, g, &ot.Flags.Settings)
}
