// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package joingraph

import (
	"math"

	"github.com/cockroachdb/qplan/pkg/sql/opt/qtree"
	"github.com/cockroachdb/qplan/pkg/util/intsets"
)

// Default selectivities used when statistics cannot answer.
const (
	defaultEqSelectivity      = 0.001
	defaultRangeSelectivity   = 0.1
	defaultBetweenSelectivity = 0.01
	defaultInSelectivity      = 0.01
	defaultLikeSelectivity    = 0.1
	defaultNullSelectivity    = 0.01
	defaultExistsSelectivity  = 0.1
	defaultOtherSelectivity   = 0.1

	minSelectivity = 1e-9
)

func clampSelectivity(s float64) float64 {
	if math.IsNaN(s) || s < minSelectivity {
		return minSelectivity
	}
	if s > 1 {
		return 1
	}
	return s
}

func (g *Graph) eqSelectivity(seg SegmentID) float64 {
	if seg < 0 {
		return defaultEqSelectivity
	}
	if d := g.Segments[seg].Distinct; d >= 1 {
		return 1 / d
	}
	return defaultEqSelectivity
}

// termSelectivity estimates the fraction of rows satisfying the term.
func (g *Graph) termSelectivity(t *Term) float64 {
	if t.Pred != nil && t.Pred.Selectivity > 0 {
		return clampSelectivity(t.Pred.Selectivity)
	}
	left, right := t.Sides[0].Seg, t.Sides[1].Seg
	var sel float64
	switch t.Op {
	case qtree.OpEq:
		switch {
		case left >= 0 && right >= 0:
			sel = math.Min(g.eqSelectivity(left), g.eqSelectivity(right))
		case left >= 0:
			sel = g.eqSelectivity(left)
		default:
			sel = defaultEqSelectivity
		}
	case qtree.OpNe:
		sel = 1 - g.eqSelectivity(left)
	case qtree.OpLt, qtree.OpLe, qtree.OpGt, qtree.OpGe, qtree.OpBetween:
		sel = g.rangeSelectivity(left, []*Term{t})
	case qtree.OpIn:
		sel = defaultInSelectivity
	case qtree.OpLike:
		sel = defaultLikeSelectivity
	case qtree.OpIsNull:
		sel = g.nullSelectivity(left)
	case qtree.OpIsNotNull:
		sel = 1 - g.nullSelectivity(left)
	case qtree.OpExists:
		sel = defaultExistsSelectivity
	case qtree.OpPath:
		sel = 1
		if c := g.Nodes[t.Target].Card; c > 1 {
			sel = 1 / c
		}
	default:
		sel = defaultOtherSelectivity
	}
	return clampSelectivity(sel)
}

func (g *Graph) nullSelectivity(seg SegmentID) float64 {
	if seg >= 0 && g.Segments[seg].NullFraction > 0 {
		return g.Segments[seg].NullFraction
	}
	return defaultNullSelectivity
}

// constBound returns the constant value of an operand.
func constBound(o qtree.Operand) (float64, bool) {
	if o.Const == nil {
		return 0, false
	}
	return *o.Const, true
}

// rangeSelectivity estimates the selectivity of a conjunction of range and
// equality terms over one segment. Constant bounds are intersected into a
// single interval and interpolated over the segment's value range; terms
// without constant bounds contribute their own selectivity.
func (g *Graph) rangeSelectivity(seg SegmentID, terms []*Term) float64 {
	if seg < 0 {
		sel := 1.0
		for _, t := range terms {
			if t.Op == qtree.OpBetween {
				sel *= defaultBetweenSelectivity
			} else {
				sel *= defaultRangeSelectivity
			}
		}
		return clampSelectivity(sel)
	}
	s := &g.Segments[seg]
	lo, hi := math.Inf(-1), math.Inf(1)
	bounded := false
	other := 1.0
	for _, t := range terms {
		if t.Sides[0].Seg != seg {
			other *= storedSelectivity(t)
			continue
		}
		switch t.Op {
		case qtree.OpEq:
			other *= g.eqSelectivity(seg)
			continue
		case qtree.OpBetween:
			l, okl := constBound(t.Right)
			h, okh := constBound(t.High)
			if !okl || !okh || !s.HasRange {
				other *= defaultBetweenSelectivity
				continue
			}
			lo, hi = math.Max(lo, l), math.Min(hi, h)
		case qtree.OpLt, qtree.OpLe:
			v, ok := constBound(t.Right)
			if !ok || !s.HasRange {
				other *= defaultRangeSelectivity
				continue
			}
			hi = math.Min(hi, v)
		case qtree.OpGt, qtree.OpGe:
			v, ok := constBound(t.Right)
			if !ok || !s.HasRange {
				other *= defaultRangeSelectivity
				continue
			}
			lo = math.Max(lo, v)
		default:
			other *= storedSelectivity(t)
			continue
		}
		bounded = true
	}
	sel := other
	if bounded {
		lo, hi = math.Max(lo, s.Min), math.Min(hi, s.Max)
		if width := s.Max - s.Min; hi < lo {
			sel = 0
		} else if width > 0 {
			sel *= (hi - lo) / width
		}
	}
	return clampSelectivity(sel)
}

func storedSelectivity(t *Term) float64 {
	if t.Selectivity > 0 {
		return t.Selectivity
	}
	return defaultOtherSelectivity
}

// CombinedSelectivity estimates the selectivity of a set of terms evaluated
// together. Range and equality terms comparing the same segment against
// constants are combined into one interval.
func (g *Graph) CombinedSelectivity(terms intsets.Fast) float64 {
	bySeg := make(map[SegmentID][]*Term)
	var order []SegmentID
	sel := 1.0
	terms.ForEach(func(id int) {
		t := &g.Terms[id]
		if seg := t.Sides[0].Seg; seg >= 0 && t.isConstComparison() {
			if _, ok := bySeg[seg]; !ok {
				order = append(order, seg)
			}
			bySeg[seg] = append(bySeg[seg], t)
			return
		}
		sel *= t.Selectivity
	})
	for _, seg := range order {
		sel *= g.rangeSelectivity(seg, bySeg[seg])
	}
	return clampSelectivity(sel)
}

// isConstComparison returns true for a range or equality comparison of a
// bare column against constants.
func (t *Term) isConstComparison() bool {
	if !t.Op.IsRange() && t.Op != qtree.OpEq {
		return false
	}
	_, ok := constBound(t.Right)
	return ok && (t.Op != qtree.OpBetween || t.High.Const != nil)
}
