// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCostAdd(t *testing.T) {
	testCases := []struct {
		left, right, expected Cost
	}{
		{Cost{VarCPU: 1.0}, Cost{VarCPU: 2.0}, Cost{VarCPU: 3.0}},
		{Cost{}, Cost{}, Cost{}},
		{Cost{FixedIO: -1.0}, Cost{FixedIO: 1.0}, Cost{}},
		{Cost{1, 2, 3, 4}, Cost{4, 3, 2, 1}, Cost{5, 5, 5, 5}},
	}
	for _, tc := range testCases {
		tc.left.Add(tc.right)
		if tc.left != tc.expected {
			t.Errorf("expected %v.Add(%v) to be %v, got %v", tc.left, tc.right, tc.expected, tc.left)
		}
	}
	c := Cost{VarCPU: 1}
	c.Add(MaxCost)
	require.True(t, c.IsInfinite())
}

func TestCostParts(t *testing.T) {
	c := Cost{FixedCPU: 1, FixedIO: 2, VarCPU: 3, VarIO: 4}
	require.Equal(t, 3.0, c.Fixed())
	require.Equal(t, 7.0, c.Var())
	require.Equal(t, 10.0, c.Total())
	require.Equal(t, 4.0, c.CPU())
	require.Equal(t, 6.0, c.IO())
	require.False(t, c.IsInfinite())
	require.True(t, MaxCost.IsInfinite())
	require.Equal(t, "10 (fixed 1/2, var 3/4)", c.String())
	require.Equal(t, "inf", MaxCost.String())
}

func TestCompareCosts(t *testing.T) {
	testCases := []struct {
		left, right Cost
		expected    Comparison
	}{
		{Cost{}, Cost{}, Equal},
		{Cost{FixedCPU: 1}, Cost{FixedIO: 1}, Equal},
		{Cost{FixedIO: 1}, Cost{FixedIO: 2}, Greater},
		{Cost{FixedIO: 2}, Cost{FixedIO: 1}, Less},
		{Cost{FixedIO: 1, VarIO: 5}, Cost{FixedIO: 5, VarIO: 1}, Incomparable},
		{Cost{FixedIO: 1, VarIO: 5}, Cost{FixedIO: 1, VarIO: 6}, Greater},
		{Cost{VarCPU: 1}, MaxCost, Greater},
		{MaxCost, Cost{VarCPU: 1}, Less},
		{MaxCost, MaxCost, Equal},
	}
	for _, tc := range testCases {
		if res := CompareCosts(tc.left, tc.right); res != tc.expected {
			t.Errorf("expected CompareCosts(%v, %v) to be %s, got %s", tc.left, tc.right, tc.expected, res)
		}
		require.Equal(t, tc.expected.Reverse(), CompareCosts(tc.right, tc.left))
	}
}

// TestCompareCostsSound checks that a plan is only reported as dominating
// another when it is no worse in either part and strictly better in one.
func TestCompareCostsSound(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	gen := func() Cost {
		// Small integer components produce frequent ties.
		return Cost{
			FixedCPU: float64(rng.Intn(3)),
			FixedIO:  float64(rng.Intn(3)),
			VarCPU:   float64(rng.Intn(3)),
			VarIO:    float64(rng.Intn(3)),
		}
	}
	for i := 0; i < 10000; i++ {
		a, b := gen(), gen()
		res := CompareCosts(a, b)
		switch res {
		case Greater:
			require.LessOrEqual(t, a.Fixed(), b.Fixed())
			require.LessOrEqual(t, a.Var(), b.Var())
			require.True(t, a.Fixed() < b.Fixed() || a.Var() < b.Var())
		case Less:
			require.GreaterOrEqual(t, a.Fixed(), b.Fixed())
			require.GreaterOrEqual(t, a.Var(), b.Var())
			require.True(t, a.Fixed() > b.Fixed() || a.Var() > b.Var())
		case Equal:
			require.Equal(t, a.Fixed(), b.Fixed())
			require.Equal(t, a.Var(), b.Var())
		case Incomparable:
			require.True(t, (a.Fixed() < b.Fixed()) != (a.Var() < b.Var()))
		}
	}
}
