// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/util/buildutil"
)

// PlanRef is a generational handle to a plan stored in an Arena. The zero
// value refers to no plan. A handle outlives the plan it refers to: once the
// plan is freed its slot is reused under a new generation and the stale
// handle no longer resolves.
type PlanRef struct {
	// idx is the slot index plus one.
	idx uint32
	gen uint32
}

// IsNil returns true for the zero handle.
func (r PlanRef) IsNil() bool {
	return r.idx == 0
}

func (r PlanRef) String() string {
	if r.IsNil() {
		return "p-"
	}
	return fmt.Sprintf("p%d.%d", r.idx, r.gen)
}

type planSlot struct {
	plan  Plan
	gen   uint32
	refs  int32
	inUse bool
}

// Arena owns the plans of one optimization run. Plans are reference counted:
// every parent plan and every retaining info node holds one reference. A plan
// is freed when its last reference is released, which in turn releases its
// children.
type Arena struct {
	slots []*planSlot
	free  []uint32

	live    int
	created int
}

func (a *Arena) add(p Plan) PlanRef {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, &planSlot{})
		idx = uint32(len(a.slots))
	}
	s := a.slots[idx-1]
	s.plan = p
	s.refs = 0
	s.inUse = true
	a.live++
	a.created++
	for _, c := range p.Op.Children() {
		a.Retain(c)
	}
	return PlanRef{idx: idx, gen: s.gen}
}

func (a *Arena) slot(r PlanRef) *planSlot {
	if r.IsNil() || int(r.idx) > len(a.slots) {
		panic(errors.AssertionFailedf("invalid plan reference %s", r))
	}
	s := a.slots[r.idx-1]
	if !s.inUse || s.gen != r.gen {
		panic(errors.AssertionFailedf("stale plan reference %s", r))
	}
	return s
}

// Valid returns true if the handle refers to a live plan.
func (a *Arena) Valid(r PlanRef) bool {
	if r.IsNil() || int(r.idx) > len(a.slots) {
		return false
	}
	s := a.slots[r.idx-1]
	return s.inUse && s.gen == r.gen
}

// Get returns the plan referred to by the handle. The pointer must not be
// kept across a call that may free plans.
func (a *Arena) Get(r PlanRef) *Plan {
	return &a.slot(r).plan
}

// Refs returns the reference count of the plan.
func (a *Arena) Refs(r PlanRef) int {
	return int(a.slot(r).refs)
}

// Retain adds a reference to the plan.
func (a *Arena) Retain(r PlanRef) {
	a.slot(r).refs++
}

// Release drops a reference to the plan, freeing it when none remain.
func (a *Arena) Release(r PlanRef) {
	s := a.slot(r)
	if s.refs <= 0 {
		panic(errors.AssertionFailedf("plan %s released more often than retained", r))
	}
	s.refs--
	if s.refs == 0 {
		a.freeSlot(r, s)
	}
}

// Discard frees a plan that was never retained, such as a rejected
// candidate. It is a no-op for a retained plan.
func (a *Arena) Discard(r PlanRef) {
	if r.IsNil() {
		return
	}
	if s := a.slot(r); s.refs == 0 {
		a.freeSlot(r, s)
	}
}

func (a *Arena) freeSlot(r PlanRef, s *planSlot) {
	children := s.plan.Op.Children()
	s.plan = Plan{}
	s.inUse = false
	s.gen++
	a.free = append(a.free, r.idx)
	a.live--
	for _, c := range children {
		a.Release(c)
	}
}

// Live returns the number of plans not yet freed.
func (a *Arena) Live() int {
	return a.live
}

// Created returns the number of plans ever added.
func (a *Arena) Created() int {
	return a.created
}

// CheckRefs verifies, in invariant builds, that the reference counts of all
// live plans are explained by the given external references and by parent
// plans.
func (a *Arena) CheckRefs(external map[PlanRef]int) {
	if !buildutil.Invariants {
		return
	}
	expected := make(map[PlanRef]int)
	for r, n := range external {
		expected[r] += n
	}
	for _, s := range a.slots {
		if !s.inUse {
			continue
		}
		for _, c := range s.plan.Op.Children() {
			expected[c]++
		}
	}
	for i, s := range a.slots {
		if !s.inUse {
			continue
		}
		r := PlanRef{idx: uint32(i + 1), gen: s.gen}
		if int(s.refs) != expected[r] {
			panic(errors.AssertionFailedf("plan %s has %d references, expected %d", r, s.refs, expected[r]))
		}
	}
}
