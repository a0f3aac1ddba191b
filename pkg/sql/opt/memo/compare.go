// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

// Comparison is the outcome of comparing two plans.
type Comparison int8

const (
	// Incomparable means neither plan dominates the other.
	Incomparable Comparison = iota
	// Less means the first plan is dominated by the second.
	Less
	// Equal means both plans have the same cost.
	Equal
	// Greater means the first plan dominates the second.
	Greater
)

var comparisonNames = [...]string{
	Incomparable: "incomparable",
	Less:         "less",
	Equal:        "equal",
	Greater:      "greater",
}

func (c Comparison) String() string {
	return comparisonNames[c]
}

// Reverse returns the outcome of the comparison with the operands swapped.
func (c Comparison) Reverse() Comparison {
	switch c {
	case Less:
		return Greater
	case Greater:
		return Less
	}
	return c
}

// CompareCosts compares the fixed and variable parts of two costs. a
// dominates b when it is no worse in either part and strictly better in
// one.
func CompareCosts(a, b Cost) Comparison {
	af, av := a.Fixed(), a.Var()
	bf, bv := b.Fixed(), b.Var()
	switch {
	case af == bf && av == bv:
		return Equal
	case af <= bf && av <= bv:
		return Greater
	case af >= bf && av >= bv:
		return Less
	}
	return Incomparable
}

// Compare compares the costs of two plans over the same nodes.
func (m *Memo) Compare(a, b PlanRef) Comparison {
	return CompareCosts(m.Plan(a).Cost, m.Plan(b).Cost)
}

// PreferOnTie breaks a tie between two plans of equal cost. It returns true
// when a should replace b: both are scans of the same index entry and a
// applies fewer terms, or failing that reads fewer leaf pages, or failing
// that binds a longer key prefix.
func (m *Memo) PreferOnTie(a, b PlanRef) bool {
	v, ok := sameIndexVerdict(m.Plan(a), m.Plan(b))
	return ok && v == Greater
}

// sameIndexVerdict compares two scans of the same index entry.
func sameIndexVerdict(a, b *Plan) (Comparison, bool) {
	sa, ok := a.Op.(*Scan)
	if !ok || sa.Index == nil {
		return Incomparable, false
	}
	sb, ok := b.Op.(*Scan)
	if !ok || sb.Index != sa.Index {
		return Incomparable, false
	}
	ta := sa.KeyRange.Union(sa.KeyFilter)
	tb := sb.KeyRange.Union(sb.KeyFilter)
	switch {
	case ta.Equals(tb):
	case ta.SubsetOf(tb):
		return Greater, true
	case tb.SubsetOf(ta):
		return Less, true
	}
	switch la, lb := a.Cost.FixedIO, b.Cost.FixedIO; {
	case la < lb:
		return Greater, true
	case la > lb:
		return Less, true
	}
	switch {
	case sa.KeyPrefix > sb.KeyPrefix:
		return Greater, true
	case sa.KeyPrefix < sb.KeyPrefix:
		return Less, true
	}
	return Equal, true
}
