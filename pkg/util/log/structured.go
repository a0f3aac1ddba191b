// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// timeNow is swapped out by tests.
var timeNow = time.Now

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, &buf)
	buf.WriteString(redact.Sprintf(format, args...).StripMarkers())
	return buf.String()
}

// formatTags writes the context's log tags, surrounded by brackets and
// followed by a space. Nothing is written when there are no tags.
func formatTags(ctx context.Context, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return
	}
	buf.WriteByte('[')
	buf.WriteString(tags.String())
	buf.WriteString("] ")
}

// addStructured creates a log entry and writes it to the configured output.
// depth is the number of stack frames between the caller of the public
// logging function and this function.
func addStructured(
	ctx context.Context, sev Severity, depth int, format string, args []interface{},
) {
	msg := redact.Sprintf(format, args...)
	text := string(msg)
	if !mainLog.redactable.Load() {
		text = msg.StripMarkers()
	}

	file, line := "???", 0
	if _, f, l, ok := runtime.Caller(depth + 1); ok {
		file = filepath.Join(filepath.Base(filepath.Dir(f)), filepath.Base(f))
		line = l
	}

	var buf strings.Builder
	buf.WriteByte(sev.Char())
	buf.WriteString(timeNow().UTC().Format("060102 15:04:05.000000"))
	fmt.Fprintf(&buf, " %s:%d ", file, line)
	formatTags(ctx, &buf)
	buf.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		buf.WriteByte('\n')
	}

	mainLog.mu.Lock()
	defer mainLog.mu.Unlock()
	_, _ = mainLog.mu.out.Write([]byte(buf.String()))
}
