// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package explain

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xlab/treeprint"
)

// OutputBuilder is used to build the output of an explain tree.
//
// Fields added before the first node are printed as a header. Every node
// shows its fields first and then its children:
//
//	cost: 207.5
//	• idx-join
//	├── estimated row count: 100
//	├── • seq-scan
//	│   ├── table: a
//	│   └── estimated row count: 100
//	└── • index-scan
//	    └── table: b@b_k
type OutputBuilder struct {
	flags  Flags
	header []string
	root   treeprint.Tree
	stack  []treeprint.Tree
}

// NewOutputBuilder creates a new OutputBuilder.
//
// EnterNode / LeaveNode are used to build a tree of nodes; AddField attaches
// a field to the current node.
func NewOutputBuilder(flags Flags) *OutputBuilder {
	return &OutputBuilder{flags: flags}
}

// EnterNode creates a new node as a child of the current node.
func (ob *OutputBuilder) EnterNode(name string) {
	label := "• " + name
	var t treeprint.Tree
	if len(ob.stack) == 0 {
		if ob.root != nil {
			panic(errors.AssertionFailedf("explain tree already has a root"))
		}
		ob.root = treeprint.NewWithRoot(label)
		t = ob.root
	} else {
		t = ob.stack[len(ob.stack)-1].AddBranch(label)
	}
	ob.stack = append(ob.stack, t)
}

// LeaveNode moves the current node back up the tree by one level.
func (ob *OutputBuilder) LeaveNode() {
	if len(ob.stack) == 0 {
		panic(errors.AssertionFailedf("LeaveNode without EnterNode"))
	}
	ob.stack = ob.stack[:len(ob.stack)-1]
}

// AddField adds a field to the current node, or to the header if no node
// has been entered yet.
func (ob *OutputBuilder) AddField(key, value string) {
	if len(ob.stack) == 0 {
		ob.header = append(ob.header, key+": "+value)
		return
	}
	ob.stack[len(ob.stack)-1].AddNode(key + ": " + value)
}

// BuildString returns the header followed by the tree.
func (ob *OutputBuilder) BuildString() string {
	if len(ob.stack) != 0 {
		panic(errors.AssertionFailedf("unbalanced EnterNode/LeaveNode"))
	}
	var b strings.Builder
	for _, h := range ob.header {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	if ob.root != nil {
		b.WriteString(ob.root.String())
	}
	return b.String()
}
