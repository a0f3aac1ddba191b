// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log implements the logging facility used by the optimizer. Log
// calls take a context, whose log tags (see github.com/cockroachdb/logtags)
// are prepended to every message. Messages are built with redact so that
// values coming from the query (table names, predicate text) can be marked
// as unsafe when redactable output is requested.
package log

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Severity identifies the importance of a log entry.
type Severity int32

const (
	// SeverityInfo is used for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is used for situations that are unexpected but
	// recoverable.
	SeverityWarning
	// SeverityError is used for failures that end an optimization run.
	SeverityError
)

// Char returns the single-character prefix used for a severity.
func (s Severity) Char() byte {
	switch s {
	case SeverityWarning:
		return 'W'
	case SeverityError:
		return 'E'
	default:
		return 'I'
	}
}

type loggerT struct {
	verbosity  atomic.Int32
	redactable atomic.Bool

	mu struct {
		sync.Mutex
		out io.Writer
	}
}

var mainLog = func() *loggerT {
	l := &loggerT{}
	l.mu.out = os.Stderr
	return l
}()

// SetOutput redirects log output to w and returns a function that restores
// the previous output.
func SetOutput(w io.Writer) (restore func()) {
	mainLog.mu.Lock()
	defer mainLog.mu.Unlock()
	prev := mainLog.mu.out
	mainLog.mu.out = w
	return func() {
		mainLog.mu.Lock()
		defer mainLog.mu.Unlock()
		mainLog.mu.out = prev
	}
}

// SetVerbosity sets the global verbosity level used by V and VEventf, and
// returns the previous level.
func SetVerbosity(level int32) int32 {
	return mainLog.verbosity.Swap(level)
}

// SetRedactable controls whether redaction markers are kept in the output.
func SetRedactable(enabled bool) {
	mainLog.redactable.Store(enabled)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return mainLog.verbosity.Load() >= level
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityInfo, 1, format, args)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityWarning, 1, format, args)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, SeverityError, 1, format, args)
}

// VEventf logs an INFO message if the verbosity is at least level. Verbose
// events are the optimizer's trace of its search decisions.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, SeverityInfo, 1, format, args)
	}
}

// ExpensiveLogEnabled is used to test whether effort should be used to
// produce log messages whose construction has a measurable cost, such as
// formatting a memo or a plan tree.
func ExpensiveLogEnabled(ctx context.Context, level int32) bool {
	return V(level)
}
