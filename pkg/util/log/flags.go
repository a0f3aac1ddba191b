// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"strconv"

	"github.com/spf13/pflag"
)

// verbosityValue adapts the global verbosity to the pflag.Value interface.
type verbosityValue struct{}

var _ pflag.Value = verbosityValue{}

func (verbosityValue) String() string {
	return strconv.Itoa(int(mainLog.verbosity.Load()))
}

func (verbosityValue) Set(s string) error {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return err
	}
	SetVerbosity(int32(v))
	return nil
}

func (verbosityValue) Type() string { return "level" }

// AddFlags registers the logging flags on the given flag set.
func AddFlags(fs *pflag.FlagSet) {
	fs.VarP(verbosityValue{}, "verbosity", "v", "log verbosity; level 2 traces join search decisions")
	fs.Bool("redactable-logs", false, "keep redaction markers around unsafe values in log output")
}

// ApplyFlags reads back flags registered by AddFlags that are not applied
// directly on Set.
func ApplyFlags(fs *pflag.FlagSet) error {
	redactable, err := fs.GetBool("redactable-logs")
	if err != nil {
		return err
	}
	SetRedactable(redactable)
	return nil
}
