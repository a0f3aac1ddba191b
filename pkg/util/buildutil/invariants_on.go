// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

//go:build invariants || race
// +build invariants race

package buildutil

// Invariants is enabled when built with the invariants or race build tags. It
// turns internal consistency failures in the optimizer into panics instead of
// returned errors, and enables the expensive plan coverage checks.
const Invariants = true
