// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

var boolTA = RegisterBoolSetting("bool.t", "", true)
var i1A = RegisterIntSetting("i.1", "", 0)
var i2A = RegisterIntSetting("i.2", "", 5, PositiveInt)
var fA = RegisterFloatSetting("f", "", 5.4, NonNegativeFloat)

func init() {
	Hide("bool.t")
}

func TestDefaults(t *testing.T) {
	var sv *Values
	require.True(t, boolTA.Get(sv))
	require.Equal(t, int64(0), i1A.Get(sv))
	require.Equal(t, int64(5), i2A.Get(sv))
	require.Equal(t, 5.4, fA.Get(sv))
	require.Equal(t, "5.4", fA.EncodedDefault())
}

func TestSet(t *testing.T) {
	var sv Values
	require.NoError(t, sv.Set("i.2", "7"))
	require.NoError(t, sv.Set("bool.t", "false"))
	require.Equal(t, int64(7), i2A.Get(&sv))
	require.False(t, boolTA.Get(&sv))
	require.Equal(t, []string{"bool.t", "i.2"}, sv.Overrides())

	require.Error(t, sv.Set("i.2", "0"))
	require.Error(t, sv.Set("f", "-1"))
	require.Error(t, sv.Set("i.1", "x"))
	err := sv.Set("nope", "1")
	require.True(t, errors.Is(err, ErrUnknownSetting))

	sv.Reset("i.2")
	require.Equal(t, int64(5), i2A.Get(&sv))
}

func TestLoadYAML(t *testing.T) {
	var sv Values
	require.NoError(t, sv.LoadYAML([]byte("i.1: 3\nf: 0.5\n")))
	require.Equal(t, int64(3), i1A.Get(&sv))
	require.Equal(t, 0.5, fA.Get(&sv))
	require.Error(t, sv.LoadYAML([]byte("unknown.key: 1\n")))
}

func TestFlags(t *testing.T) {
	var sv Values
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	sv.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--set", "i.1=9", "--set", "f = 1.5"}))
	require.Equal(t, int64(9), i1A.Get(&sv))
	require.Equal(t, 1.5, fA.Get(&sv))
	require.Error(t, fs.Parse([]string{"--set", "i.1"}))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	require.Contains(t, keys, "i.1")
	require.NotContains(t, keys, "bool.t")
	_, _, ok := Lookup("bool.t")
	require.True(t, ok)
}
