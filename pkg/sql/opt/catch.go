// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package opt holds the pieces shared by the optimizer packages.
package opt

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/util/buildutil"
)

// CatchOptimizerError catches any runtime panics from optimizer functions and
// returns them as errors. This allows the optimizer to propagate errors
// internally as panics without adding error checks everywhere. This is only
// possible because an optimization run does not update shared state and
// does not manipulate locks.
//
// In builds with invariants enabled the panic is not recovered, so that
// internal failures surface at the point they occur.
func CatchOptimizerError() error {
	r := recover()
	if r == nil {
		return nil
	}
	if buildutil.Invariants {
		panic(r)
	}
	err, ok := r.(error)
	if !ok {
		// Not an error object. For serious internal errors e.g. in the scheduler,
		// bad goroutine state, allocator problem etc, the go runtime throws a
		// string which does not implement error. So in this case we suspect we are
		// not able to recover, and must crash.
		panic(r)
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		// Convert runtime errors to assertion failures, which include stacks.
		return errors.HandleAsAssertionFailure(err)
	}
	return err
}
