// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package intsets provides sets of small non-negative integers.
package intsets

import (
	"bytes"
	"fmt"
	"math/bits"
)

const (
	wordBits = 64

	// inlineWords is the number of words stored directly in a Fast set. Sets
	// whose members are all below smallCutoff never touch the heap.
	inlineWords = 2

	smallCutoff = inlineWords * wordBits
)

// Fast is a set of non-negative integers. Members below smallCutoff live in
// an inline word array; larger members spill into an overflow slice.
//
// Fast has value semantics: assigning a Fast copies it, and mutating the copy
// never affects the original. Mutations that touch the overflow slice always
// write into a freshly allocated slice (copy-on-write), so overflow storage
// is never shared between two live sets that are later mutated. This lets
// callers keep immutable snapshots of a set while extending another copy of
// it, which is what the join search relies on when it backtracks.
//
// The zero value is the empty set.
type Fast struct {
	small [inlineWords]uint64
	// large holds words inlineWords, inlineWords+1, ... It never has trailing
	// zero words, and is nil when no member is >= smallCutoff.
	large []uint64
}

// MakeFast returns a set initialized with the given values.
func MakeFast(vals ...int) Fast {
	var res Fast
	for _, v := range vals {
		res.Add(v)
	}
	return res
}

// MakeFastRange returns a set containing all the integers in [from, to).
func MakeFastRange(from, to int) Fast {
	var res Fast
	res.AddRange(from, to)
	return res
}

func (s *Fast) numWords() int {
	return inlineWords + len(s.large)
}

func (s *Fast) word(i int) uint64 {
	if i < inlineWords {
		return s.small[i]
	}
	i -= inlineWords
	if i < len(s.large) {
		return s.large[i]
	}
	return 0
}

// setLarge installs a new overflow slice, trimming trailing zero words.
func (s *Fast) setLarge(large []uint64) {
	n := len(large)
	for n > 0 && large[n-1] == 0 {
		n--
	}
	if n == 0 {
		s.large = nil
		return
	}
	s.large = large[:n:n]
}

// cloneLarge returns a private copy of the overflow slice with room for at
// least n words.
func (s *Fast) cloneLarge(n int) []uint64 {
	if n < len(s.large) {
		n = len(s.large)
	}
	res := make([]uint64, n)
	copy(res, s.large)
	return res
}

// Add adds a value to the set. No-op if the value is already in the set.
func (s *Fast) Add(i int) {
	if i < 0 {
		panic(fmt.Sprintf("intsets: negative value %d", i))
	}
	w, b := i/wordBits, uint(i%wordBits)
	if w < inlineWords {
		s.small[w] |= 1 << b
		return
	}
	if s.word(w)&(1<<b) != 0 {
		return
	}
	large := s.cloneLarge(w - inlineWords + 1)
	large[w-inlineWords] |= 1 << b
	s.setLarge(large)
}

// AddRange adds values 'from' up to 'to' (exclusively) to the set.
func (s *Fast) AddRange(from, to int) {
	if from >= to {
		return
	}
	if from < 0 {
		panic(fmt.Sprintf("intsets: negative value %d", from))
	}
	first, last := from/wordBits, (to-1)/wordBits
	var large []uint64
	if last >= inlineWords {
		large = s.cloneLarge(last - inlineWords + 1)
	}
	for w := first; w <= last; w++ {
		lo, hi := 0, wordBits
		if w == first {
			lo = from % wordBits
		}
		if w == last {
			hi = (to-1)%wordBits + 1
		}
		mask := (^uint64(0) >> uint(wordBits-(hi-lo))) << uint(lo)
		if w < inlineWords {
			s.small[w] |= mask
		} else {
			large[w-inlineWords] |= mask
		}
	}
	if large != nil {
		s.setLarge(large)
	}
}

// Remove removes a value from the set. No-op if the value is not in the set.
func (s *Fast) Remove(i int) {
	if i < 0 {
		return
	}
	w, b := i/wordBits, uint(i%wordBits)
	if w < inlineWords {
		s.small[w] &^= 1 << b
		return
	}
	if s.word(w)&(1<<b) == 0 {
		return
	}
	large := s.cloneLarge(0)
	large[w-inlineWords] &^= 1 << b
	s.setLarge(large)
}

// Clear removes all values from the set.
func (s *Fast) Clear() {
	*s = Fast{}
}

// Contains returns true if the set contains the value.
func (s Fast) Contains(i int) bool {
	if i < 0 {
		return false
	}
	return s.word(i/wordBits)&(1<<uint(i%wordBits)) != 0
}

// Empty returns true if the set is empty.
func (s Fast) Empty() bool {
	return s.small == [inlineWords]uint64{} && s.large == nil
}

// Len returns the number of elements in the set.
func (s Fast) Len() int {
	n := 0
	for i := 0; i < s.numWords(); i++ {
		n += bits.OnesCount64(s.word(i))
	}
	return n
}

// Next returns the first value in the set which is >= startVal. If there is no
// value, the second return value is false.
func (s Fast) Next(startVal int) (int, bool) {
	if startVal < 0 {
		startVal = 0
	}
	w := startVal / wordBits
	if w >= s.numWords() {
		return 0, false
	}
	cur := s.word(w) &^ ((1 << uint(startVal%wordBits)) - 1)
	for {
		if cur != 0 {
			return w*wordBits + bits.TrailingZeros64(cur), true
		}
		w++
		if w >= s.numWords() {
			return 0, false
		}
		cur = s.word(w)
	}
}

// First returns the smallest value in the set, or false if the set is empty.
func (s Fast) First() (int, bool) {
	return s.Next(0)
}

// ForEach calls a function for each value in the set (in increasing order).
func (s Fast) ForEach(f func(i int)) {
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		f(i)
	}
}

// Ordered returns a slice with all the integers in the set, in increasing
// order.
func (s Fast) Ordered() []int {
	if s.Empty() {
		return nil
	}
	res := make([]int, 0, s.Len())
	s.ForEach(func(i int) {
		res = append(res, i)
	})
	return res
}

// Copy returns a copy of s which can be modified independently.
func (s Fast) Copy() Fast {
	return s
}

// CopyFrom sets the receiver to a copy of other, which can then be modified
// independently.
func (s *Fast) CopyFrom(other Fast) {
	*s = other
}

// binary applies op word by word to s and other.
func (s Fast) binary(other Fast, op func(a, b uint64) uint64) Fast {
	var res Fast
	for i := 0; i < inlineWords; i++ {
		res.small[i] = op(s.small[i], other.small[i])
	}
	n := len(s.large)
	if len(other.large) > n {
		n = len(other.large)
	}
	if n > 0 {
		large := make([]uint64, n)
		for i := range large {
			large[i] = op(s.word(i+inlineWords), other.word(i+inlineWords))
		}
		res.setLarge(large)
	}
	return res
}

// UnionWith adds all the elements from rhs to this set.
func (s *Fast) UnionWith(rhs Fast) {
	*s = s.Union(rhs)
}

// Union returns the union of s and rhs as a new set.
func (s Fast) Union(rhs Fast) Fast {
	return s.binary(rhs, func(a, b uint64) uint64 { return a | b })
}

// IntersectionWith removes any elements not in rhs from this set.
func (s *Fast) IntersectionWith(rhs Fast) {
	*s = s.Intersection(rhs)
}

// Intersection returns the intersection of s and rhs as a new set.
func (s Fast) Intersection(rhs Fast) Fast {
	return s.binary(rhs, func(a, b uint64) uint64 { return a & b })
}

// DifferenceWith removes any elements in rhs from this set.
func (s *Fast) DifferenceWith(rhs Fast) {
	*s = s.Difference(rhs)
}

// Difference returns the elements of s that are not in rhs as a new set.
func (s Fast) Difference(rhs Fast) Fast {
	return s.binary(rhs, func(a, b uint64) uint64 { return a &^ b })
}

// Intersects returns true if s has any elements in common with rhs.
func (s Fast) Intersects(rhs Fast) bool {
	n := s.numWords()
	if m := rhs.numWords(); m < n {
		n = m
	}
	for i := 0; i < n; i++ {
		if s.word(i)&rhs.word(i) != 0 {
			return true
		}
	}
	return false
}

// Equals returns true if the two sets are identical.
func (s Fast) Equals(rhs Fast) bool {
	if s.small != rhs.small || len(s.large) != len(rhs.large) {
		return false
	}
	for i := range s.large {
		if s.large[i] != rhs.large[i] {
			return false
		}
	}
	return true
}

// SubsetOf returns true if rhs contains all the elements in s.
func (s Fast) SubsetOf(rhs Fast) bool {
	for i := 0; i < s.numWords(); i++ {
		if s.word(i)&^rhs.word(i) != 0 {
			return false
		}
	}
	return true
}

// Invert returns the complement of s within the universe [0, n). Members of s
// that are >= n are dropped.
func (s Fast) Invert(n int) Fast {
	return MakeFastRange(0, n).Difference(s)
}

// Compare orders sets by their highest differing word, then by that word's
// value. It returns -1, 0 or +1, and is a total order consistent with Equals.
func (s Fast) Compare(rhs Fast) int {
	n := s.numWords()
	if m := rhs.numWords(); m > n {
		n = m
	}
	for i := n - 1; i >= 0; i-- {
		a, b := s.word(i), rhs.word(i)
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
	}
	return 0
}

// String returns a list representation of elements. Sequential runs of
// positive numbers are shown as ranges. For example, for the set {1, 2, 3, 5,
// 6, 10}, the output is "(1-3,5,6,10)".
func (s Fast) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&buf, "%d", start)
		} else if start+1 == end {
			fmt.Fprintf(&buf, "%d,%d", start, end)
		} else {
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
			return
		}
		if rangeStart != -1 {
			appendRange(rangeStart, rangeEnd)
		}
		rangeStart, rangeEnd = i, i
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}
