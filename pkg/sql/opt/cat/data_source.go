// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains interfaces that are used by the query optimizer to
// avoid including specifics of sqlbase structures in the opt code. The
// catalog and the statistics collector live outside the optimizer; they hand
// it read-only snapshots through these interfaces at the start of a run.
package cat

import "context"

// StableID permanently and uniquely identifies a catalog object (table or
// index) within its scope.
type StableID uint64

// Object is implemented by all objects in the catalog.
type Object interface {
	// ID is the unique, stable identifier for this object.
	ID() StableID
}

// DataSource is an interface to a database object that provides rows, like a
// table (a "class" when the catalog supports inheritance).
type DataSource interface {
	Object

	// Name returns the unqualified name of the object.
	Name() string
}

// Catalog is an interface to a database catalog, exposing only the
// information needed by the query optimizer.
type Catalog interface {
	// ResolveDataSource locates a data source with the given name. It returns
	// an error if no such table exists.
	ResolveDataSource(ctx context.Context, name string) (DataSource, error)
}
