// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package qtree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Operator is the comparison operator of a predicate.
type Operator int

const (
	// OpEq is "=".
	OpEq Operator = iota
	// OpNe is "<>".
	OpNe
	// OpLt is "<".
	OpLt
	// OpLe is "<=".
	OpLe
	// OpGt is ">".
	OpGt
	// OpGe is ">=".
	OpGe
	// OpBetween is "BETWEEN Low AND High".
	OpBetween
	// OpIn is "IN (list or subquery)".
	OpIn
	// OpLike is "LIKE".
	OpLike
	// OpIsNull is "IS NULL".
	OpIsNull
	// OpIsNotNull is "IS NOT NULL".
	OpIsNotNull
	// OpExists is "EXISTS (subquery)".
	OpExists
	// OpPath is an object-reference navigation from Left (a reference
	// attribute) to the FROM item named by Target.
	OpPath
	// OpOther is any other boolean expression over Left's columns.
	OpOther
)

var operatorNames = [...]string{
	OpEq:        "=",
	OpNe:        "<>",
	OpLt:        "<",
	OpLe:        "<=",
	OpGt:        ">",
	OpGe:        ">=",
	OpBetween:   "between",
	OpIn:        "in",
	OpLike:      "like",
	OpIsNull:    "is null",
	OpIsNotNull: "is not null",
	OpExists:    "exists",
	OpPath:      "->",
	OpOther:     "other",
}

var operatorsByKeyword = map[string]Operator{
	"eq": OpEq, "=": OpEq,
	"ne": OpNe, "<>": OpNe,
	"lt": OpLt, "<": OpLt,
	"le": OpLe, "<=": OpLe,
	"gt": OpGt, ">": OpGt,
	"ge": OpGe, ">=": OpGe,
	"between":     OpBetween,
	"in":          OpIn,
	"like":        OpLike,
	"isnull":      OpIsNull,
	"is null":     OpIsNull,
	"isnotnull":   OpIsNotNull,
	"is not null": OpIsNotNull,
	"exists":      OpExists,
	"path":        OpPath,
	"->":          OpPath,
	"other":       OpOther,
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return "?"
}

// IsRange returns true for the operators that bound a key range.
func (o Operator) IsRange() bool {
	switch o {
	case OpLt, OpLe, OpGt, OpGe, OpBetween:
		return true
	}
	return false
}

// Commute returns the operator obtained by swapping the operands.
func (o Operator) Commute() Operator {
	switch o {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return o
}

// ColumnRef names a column of a FROM item.
type ColumnRef struct {
	Table  string
	Column string
}

func (c ColumnRef) String() string {
	return c.Table + "." + c.Column
}

// ParseColumnRef parses "alias.column".
func ParseColumnRef(s string) (ColumnRef, error) {
	i := strings.IndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return ColumnRef{}, errors.Newf("invalid column reference %q", s)
	}
	return ColumnRef{Table: s[:i], Column: s[i+1:]}, nil
}

// Expression is an opaque scalar expression over one or more columns, such
// as "a.x + b.y".
type Expression struct {
	Text    string
	Columns []ColumnRef
}

// Operand is one side of a predicate. Exactly one field is set.
type Operand struct {
	Column   *ColumnRef
	Const    *float64
	Text     *string
	Expr     *Expression
	Subquery string
}

// IsSet returns true if any field of the operand is set.
func (o Operand) IsSet() bool {
	return o.Column != nil || o.Const != nil || o.Text != nil || o.Expr != nil || o.Subquery != ""
}

// Columns returns the columns referenced by the operand.
func (o Operand) Columns() []ColumnRef {
	switch {
	case o.Column != nil:
		return []ColumnRef{*o.Column}
	case o.Expr != nil:
		return o.Expr.Columns
	}
	return nil
}

func (o Operand) String() string {
	switch {
	case o.Column != nil:
		return o.Column.String()
	case o.Const != nil:
		return strconv.FormatFloat(*o.Const, 'g', -1, 64)
	case o.Text != nil:
		return "'" + *o.Text + "'"
	case o.Expr != nil:
		return o.Expr.Text
	case o.Subquery != "":
		return "$" + o.Subquery
	}
	return ""
}

// Predicate is one conjunct of the WHERE clause or of an ON clause.
type Predicate struct {
	Op    Operator
	Left  Operand
	Right Operand
	// High is the upper bound of a BETWEEN; Right holds the lower bound.
	High Operand
	// Target is the alias of the FROM item reached by an OpPath predicate.
	Target string
	// Location is 0 for WHERE predicates, or i for the ON clause of
	// Tables[i].
	Location int
	// Selectivity overrides the estimated selectivity when non-zero.
	Selectivity float64
}

// Columns returns every column the predicate references.
func (p *Predicate) Columns() []ColumnRef {
	var res []ColumnRef
	res = append(res, p.Left.Columns()...)
	res = append(res, p.Right.Columns()...)
	res = append(res, p.High.Columns()...)
	return res
}

// Subqueries returns the names of the subqueries the predicate references.
func (p *Predicate) Subqueries() []string {
	var res []string
	for _, o := range []Operand{p.Left, p.Right, p.High} {
		if o.Subquery != "" {
			res = append(res, o.Subquery)
		}
	}
	return res
}

func (p *Predicate) String() string {
	switch p.Op {
	case OpBetween:
		return fmt.Sprintf("%s between %s and %s", p.Left, p.Right, p.High)
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", p.Left, p.Op)
	case OpExists:
		return fmt.Sprintf("exists %s", p.Right)
	case OpPath:
		return fmt.Sprintf("%s -> %s", p.Left, p.Target)
	case OpOther:
		return p.Left.String()
	}
	return fmt.Sprintf("%s %s %s", p.Left, p.Op, p.Right)
}
