// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// optplan plans a query described in YAML against a catalog described in
// YAML, and prints the chosen plan, the search memo or the join graph.
//
//	optplan explain --catalog c.yaml --query q.yaml [--set key=value ...] [-v N]
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
