// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils"
	"github.com/cockroachdb/qplan/pkg/sql/opt/testutils/testcat"
)

// TestOptimizerDataDriven runs the test files in testdata. Every file starts
// with an empty catalog filled by its exec-catalog directives.
func TestOptimizerDataDriven(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		catalog := testcat.New()
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			tester := testutils.NewOptTester(catalog, d.Input)
			return tester.RunCommand(t, d)
		})
	})
}
