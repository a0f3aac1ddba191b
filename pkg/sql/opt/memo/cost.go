// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"math"

	"github.com/cockroachdb/qplan/pkg/sql/opt/joingraph"
)

// Cost is the estimated cost of a plan. The fixed components are paid once,
// before the first row is produced; the variable components grow with the
// number of rows produced. CPU and IO are kept apart so that plans trading
// one for the other remain comparable.
type Cost struct {
	FixedCPU float64
	FixedIO  float64
	VarCPU   float64
	VarIO    float64
}

// MaxCost is the cost of a plan that must never be chosen.
var MaxCost = Cost{
	FixedCPU: math.Inf(+1),
	FixedIO:  math.Inf(+1),
	VarCPU:   math.Inf(+1),
	VarIO:    math.Inf(+1),
}

// Fixed returns the fixed part of the cost.
func (c Cost) Fixed() float64 {
	return c.FixedCPU + c.FixedIO
}

// Var returns the variable part of the cost.
func (c Cost) Var() float64 {
	return c.VarCPU + c.VarIO
}

// Total returns the sum of all components.
func (c Cost) Total() float64 {
	return c.Fixed() + c.Var()
}

// CPU returns the CPU part of the cost.
func (c Cost) CPU() float64 {
	return c.FixedCPU + c.VarCPU
}

// IO returns the IO part of the cost.
func (c Cost) IO() float64 {
	return c.FixedIO + c.VarIO
}

// IsInfinite returns true if the plan must never be chosen.
func (c Cost) IsInfinite() bool {
	return math.IsInf(c.Total(), +1)
}

// Add adds the components of other to c.
func (c *Cost) Add(other Cost) {
	c.FixedCPU += other.FixedCPU
	c.FixedIO += other.FixedIO
	c.VarCPU += other.VarCPU
	c.VarIO += other.VarIO
}

// Less returns true if c has a lower total cost than other.
func (c Cost) Less(other Cost) bool {
	return c.Total() < other.Total()
}

func (c Cost) String() string {
	if c.IsInfinite() {
		return "inf"
	}
	return fmt.Sprintf("%s (fixed %s/%s, var %s/%s)",
		joingraph.FormatFloat(c.Total()),
		joingraph.FormatFloat(c.FixedCPU), joingraph.FormatFloat(c.FixedIO),
		joingraph.FormatFloat(c.VarCPU), joingraph.FormatFloat(c.VarIO))
}
