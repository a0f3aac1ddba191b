// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/qplan/pkg/settings"
	"github.com/cockroachdb/qplan/pkg/sql/opt/exec/explain"
	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/qplan/pkg/sql/opt/xform"
	"github.com/cockroachdb/qplan/pkg/util/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// planContext holds the inputs shared by every subcommand.
type planContext struct {
	catalogPath string
	queryPath   string
	sv          settings.Values
}

// settingsFile loads a YAML file of setting overrides as soon as the flag
// is parsed, so that --set flags that follow it take precedence.
type settingsFile struct {
	sv   *settings.Values
	path string
}

var _ pflag.Value = (*settingsFile)(nil)

func (f *settingsFile) String() string { return f.path }

func (f *settingsFile) Set(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.path = path
	return f.sv.LoadYAML(data)
}

func (f *settingsFile) Type() string { return "file" }

func newRootCmd() *cobra.Command {
	pc := &planContext{}
	rootCmd := &cobra.Command{
		Use:          "optplan",
		Short:        "plan a query against a catalog and print the result",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.ApplyFlags(cmd.Flags())
		},
	}
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&pc.catalogPath, "catalog", "", "YAML file describing the tables")
	fs.StringVar(&pc.queryPath, "query", "", "YAML file describing the query")
	fs.Var(&settingsFile{sv: &pc.sv}, "settings", "YAML file of setting overrides")
	pc.sv.AddFlags(fs)
	log.AddFlags(fs)

	var opts []string
	explainCmd := &cobra.Command{
		Use:   "explain",
		Short: "print the chosen plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := explain.MakeFlags(opts)
			if err != nil {
				return err
			}
			res, err := pc.optimize(pc.logContext(cmd.Context()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), explain.Format(res, flags))
			return err
		},
	}
	explainCmd.Flags().StringSliceVar(&opts, "opts", nil,
		"explain options: verbose, shape, hide-values, redact, deflake")

	memoCmd := &cobra.Command{
		Use:   "memo",
		Short: "print every set of tables considered by the search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := pc.optimize(pc.logContext(cmd.Context()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), explain.FormatMemo(res))
			return err
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "print the join graph of the query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := pc.buildGraph(pc.logContext(cmd.Context()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), explain.FormatGraph(g))
			return err
		},
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "list the optimizer settings and their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pc.listSettings(cmd)
		},
	}

	rootCmd.AddCommand(explainCmd, memoCmd, graphCmd, settingsCmd)
	return rootCmd
}

func (pc *planContext) logContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logtags.AddTag(ctx, "query", pc.queryPath)
}

func (pc *planContext) buildGraph(ctx context.Context) (*joingraph.Graph, error) {
	if pc.catalogPath == "" || pc.queryPath == "" {
		return nil, errors.New("--catalog and --query are required")
	}
	data, err := os.ReadFile(pc.catalogPath)
	if err != nil {
		return nil, err
	}
	catalog, err := testcat.Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading catalog %s", pc.catalogPath)
	}
	data, err = os.ReadFile(pc.queryPath)
	if err != nil {
		return nil, err
	}
	q, err := qtree.ParseQuery(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading query %s", pc.queryPath)
	}
	return joingraph.Build(ctx, catalog, q, &pc.sv)
}

func (pc *planContext) optimize(ctx context.Context) (*xform.Result, error) {
	g, err := pc.buildGraph(ctx)
	if err != nil {
		return nil, err
	}
	return xform.Optimize(ctx, g, &pc.sv)
}

// listSettings prints every registered setting with its effective value.
func (pc *planContext) listSettings(cmd *cobra.Command) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"setting", "type", "value", "description"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, key := range settings.Keys() {
		s, desc, _ := settings.Lookup(key)
		table.Append([]string{key, s.Typ(), settingValue(s, &pc.sv), desc})
	}
	table.Render()
	return nil
}

func settingValue(s settings.Setting, sv *settings.Values) string {
	switch t := s.(type) {
	case *settings.IntSetting:
		return fmt.Sprint(t.Get(sv))
	case *settings.FloatSetting:
		return fmt.Sprint(t.Get(sv))
	case *settings.BoolSetting:
		return fmt.Sprint(t.Get(sv))
	}
	return s.EncodedDefault()
}
