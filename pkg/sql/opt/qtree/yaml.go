// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package qtree

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"
)

// ParseQuery decodes a query from its YAML description. The YAML form is used
// by tests and by the optplan tool in place of the SQL front end, e.g.:
//
//	tables:
//	  - {alias: a, table: t1}
//	  - {alias: b, table: t2, join: left}
//	where:
//	  - {op: eq, left: a.k, right: b.k, location: 1}
//	  - {op: between, left: a.x, right: 10, high: 20}
//	order_by: [a.k]
func ParseQuery(data []byte) (*Query, error) {
	var q Query
	if err := yaml.UnmarshalStrict(data, &q); err != nil {
		return nil, errors.Wrap(err, "parsing query")
	}
	return &q, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *JoinType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	for i, n := range joinTypeNames {
		if strings.EqualFold(s, n) {
			*t = JoinType(i)
			return nil
		}
	}
	return errors.Newf("unknown join type %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler. Hints are written as a comma
// separated list of "nl", "idx" and "merge".
func (h *JoinHint) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*h = 0
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "nl", "use_nl":
			*h |= HintNestedLoop
		case "idx", "use_idx":
			*h |= HintIndexJoin
		case "merge", "use_merge":
			*h |= HintMerge
		case "":
		default:
			return errors.Newf("unknown join hint %q", part)
		}
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ColumnRef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	ref, err := ParseColumnRef(s)
	if err != nil {
		return err
	}
	*c = ref
	return nil
}

var columnRefRE = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*`)

// UnmarshalYAML implements yaml.Unmarshaler. Operands are scalars: numbers
// are constants, "alias.col" is a column, "'text'" is a string constant,
// "$name" refers to a subquery and "expr(...)" is an opaque expression over
// the columns it mentions.
func (o *Operand) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case int:
		f := float64(v)
		*o = Operand{Const: &f}
	case float64:
		*o = Operand{Const: &v}
	case string:
		*o = parseOperand(v)
	default:
		return errors.Newf("unsupported operand %v", raw)
	}
	return nil
}

func parseOperand(s string) Operand {
	switch {
	case strings.HasPrefix(s, "$"):
		return Operand{Subquery: s[1:]}
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		text := s[1 : len(s)-1]
		return Operand{Text: &text}
	case strings.HasPrefix(s, "expr(") && strings.HasSuffix(s, ")"):
		text := strings.TrimSpace(s[len("expr(") : len(s)-1])
		e := &Expression{Text: text}
		seen := make(map[string]bool)
		for _, m := range columnRefRE.FindAllString(text, -1) {
			if seen[m] {
				continue
			}
			seen[m] = true
			ref, _ := ParseColumnRef(m)
			e.Columns = append(e.Columns, ref)
		}
		return Operand{Expr: e}
	}
	if ref, err := ParseColumnRef(s); err == nil {
		return Operand{Column: &ref}
	}
	return Operand{Text: &s}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Predicate) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Op          string  `yaml:"op"`
		Left        Operand `yaml:"left"`
		Right       Operand `yaml:"right"`
		High        Operand `yaml:"high"`
		Target      string  `yaml:"target"`
		Location    int     `yaml:"location"`
		Selectivity float64 `yaml:"selectivity"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	op, ok := operatorsByKeyword[strings.ToLower(strings.TrimSpace(raw.Op))]
	if !ok {
		return errors.Newf("unknown operator %q", raw.Op)
	}
	*p = Predicate{
		Op:          op,
		Left:        raw.Left,
		Right:       raw.Right,
		High:        raw.High,
		Target:      raw.Target,
		Location:    raw.Location,
		Selectivity: raw.Selectivity,
	}
	return nil
}
