// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import "github.com/cockroachdb/qplan/pkg/settings"

// TablesConsideredTogether is the largest partition searched exhaustively.
// Wider partitions are searched greedily.
var TablesConsideredTogether = settings.RegisterIntSetting(
	"sql.optimizer.join_search.tables_considered_together",
	"largest number of tables whose join orders are all enumerated",
	4,
	settings.PositiveInt,
)

// DominantFirstNodes enables the pre-pass restricting which nodes may start
// a join order.
var DominantFirstNodes = settings.RegisterBoolSetting(
	"sql.optimizer.join_search.dominant_first_nodes.enabled",
	"only start join orders from tables whose scans are not dominated",
	true,
)

// PlansRetained is the number of incomparable plans kept per set of nodes.
var PlansRetained = settings.RegisterIntSetting(
	"sql.optimizer.join_search.plans_retained",
	"number of incomparable plans retained for each set of tables",
	4,
	settings.PositiveInt,
)

// IndexJoinMaxOuterRows disables index joins whose outer input is estimated
// to produce more rows.
var IndexJoinMaxOuterRows = settings.RegisterFloatSetting(
	"sql.optimizer.join_search.index_join_max_outer_rows",
	"largest outer row count for which an index join is considered",
	1e6,
	settings.PositiveFloat,
)

// searchParams holds the search settings of one optimization run.
type searchParams struct {
	tablesTogether     int
	dominantFirstNodes bool
	plansRetained      int
	indexJoinMaxOuter  float64
}

func makeSearchParams(sv *settings.Values) searchParams {
	return searchParams{
		tablesTogether:     int(TablesConsideredTogether.Get(sv)),
		dominantFirstNodes: DominantFirstNodes.Get(sv),
		plansRetained:      int(PlansRetained.Get(sv)),
		indexJoinMaxOuter:  IndexJoinMaxOuterRows.Get(sv),
	}
}
