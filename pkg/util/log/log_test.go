// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	prevV := SetVerbosity(0)
	t.Cleanup(func() {
		restore()
		SetVerbosity(prevV)
		SetRedactable(false)
	})
	return &buf
}

func TestInfofTags(t *testing.T) {
	buf := captureLog(t)
	ctx := logtags.AddTag(context.Background(), "opt-run", 7)
	Infof(ctx, "planned %d partitions", 2)
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "I"), out)
	require.Contains(t, out, "log/log_test.go:")
	require.Contains(t, out, "[opt-run=7] planned 2 partitions\n")
}

func TestVEventf(t *testing.T) {
	buf := captureLog(t)
	ctx := context.Background()
	VEventf(ctx, 2, "hidden")
	require.Empty(t, buf.String())
	SetVerbosity(2)
	VEventf(ctx, 2, "shown")
	require.Contains(t, buf.String(), "shown")
	require.True(t, V(1))
	require.False(t, V(3))
}

func TestRedactable(t *testing.T) {
	buf := captureLog(t)
	ctx := context.Background()
	Warningf(ctx, "table %s", "secret")
	require.Contains(t, buf.String(), "table secret")
	require.True(t, strings.HasPrefix(buf.String(), "W"))

	buf.Reset()
	SetRedactable(true)
	Errorf(ctx, "table %s", "secret")
	require.Contains(t, buf.String(), "table "+string(redact.StartMarker())+"secret"+string(redact.EndMarker()))
}

func TestFormatWithContextTags(t *testing.T) {
	ctx := logtags.AddTag(context.Background(), "partition", 1)
	require.Equal(t, "[partition=1] 3 nodes", FormatWithContextTags(ctx, "%d nodes", 3))
	require.Equal(t, "plain", FormatWithContextTags(context.Background(), "plain"))
}

func TestEveryN(t *testing.T) {
	_ = captureLog(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Every(time.Minute)
	require.True(t, e.shouldLog(start))
	require.False(t, e.shouldLog(start.Add(time.Second)))
	require.True(t, e.shouldLog(start.Add(2*time.Minute)))
}

func TestFlags(t *testing.T) {
	_ = captureLog(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-v", "3", "--redactable-logs"}))
	require.NoError(t, ApplyFlags(fs))
	require.True(t, V(3))
	require.True(t, mainLog.redactable.Load())
}
