// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Flags are modifiers for the rendering of a plan.
type Flags struct {
	// Verbose indicates that costs, sizes, output orderings and implied terms
	// are shown.
	Verbose bool
	// If HideValues is true, we hide the text of the terms and only show how
	// many there are.
	HideValues bool
	// RedactValues is similar to HideValues but shows every term as a
	// redaction marker.
	RedactValues bool
	// If OnlyShape is true, we hide fields that could be different between 2
	// plans that otherwise have exactly the same shape, like estimated row
	// counts and terms.
	OnlyShape bool

	// Flags to hide various fields for testing purposes.
	Deflake DeflakeFlags
}

// DeflakeFlags control hiding of various field values. They are used to
// guarantee deterministic results for testing purposes.
type DeflakeFlags uint8

const (
	// DeflakeCost hides plan costs.
	DeflakeCost DeflakeFlags = (1 << iota)

	// DeflakeStats hides the search statistics.
	DeflakeStats
)

const (
	// DeflakeAll has all deflake flags set.
	DeflakeAll DeflakeFlags = DeflakeCost | DeflakeStats
)

// HasAny returns true if the receiver has any of the given deflake flags set.
func (f DeflakeFlags) HasAny(flags DeflakeFlags) bool {
	return (f & flags) != 0
}

// MakeFlags creates Flags from a list of option names, as accepted by the
// explain command line and test directives.
func MakeFlags(options []string) (Flags, error) {
	var f Flags
	for _, o := range options {
		switch strings.ToLower(strings.TrimSpace(o)) {
		case "":
		case "verbose":
			f.Verbose = true
		case "shape":
			f.OnlyShape = true
			f.Deflake = DeflakeAll
		case "hide-values":
			f.HideValues = true
		case "redact":
			f.RedactValues = true
		case "deflake":
			f.Deflake = DeflakeAll
		default:
			return Flags{}, errors.Newf("unknown explain option %q", o)
		}
	}
	if f.Verbose && (f.HideValues || f.RedactValues) {
		return Flags{}, errors.New("verbose cannot be combined with hide-values or redact")
	}
	return f, nil
}
