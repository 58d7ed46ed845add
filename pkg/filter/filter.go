// Package filter implements the metadata predicate language of spec §4.8:
// a typed expression tree (Eq/Ne/Gt/Gte/Lt/Lte/In/Nin/Contains/And/Or/Not/
// Exists) evaluated against record.Metadata, plus a tokenizer and
// precedence-climbing parser for the SQL-like surface grammar. The
// teacher's own advanced_filter.go parses filters by splitting strings on
// "AND"/"OR" substrings, which mishandles nested parentheses and quoted
// literals containing those words; this package replaces that with a
// proper tokenizer and parser while keeping the same expression-tree shape.
package filter

import (
	"github.com/kavlex/vectorcore/pkg/record"
)

// Op is a predicate comparison or combinator.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpNin      Op = "nin"
	OpContains Op = "contains"
	OpAnd      Op = "and"
	OpOr       Op = "or"
	OpNot      Op = "not"
	OpExists   Op = "exists"
)

// Expr is a node in the filter predicate tree. Leaf comparison nodes set
// Field/Value (In/Nin set Field/Values); Exists sets Field only; And/Or/Not
// set Children (Not has exactly one child).
type Expr struct {
	Op       Op
	Field    string
	Value    record.Value
	Values   []record.Value // for In/Nin
	Children []*Expr        // for And/Or/Not
}

// Eq builds a field == value predicate.
func Eq(field string, v record.Value) *Expr { return &Expr{Op: OpEq, Field: field, Value: v} }
func Ne(field string, v record.Value) *Expr { return &Expr{Op: OpNe, Field: field, Value: v} }
func Gt(field string, v record.Value) *Expr { return &Expr{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v record.Value) *Expr { return &Expr{Op: OpGte, Field: field, Value: v} }
func Lt(field string, v record.Value) *Expr { return &Expr{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v record.Value) *Expr { return &Expr{Op: OpLte, Field: field, Value: v} }
func In(field string, vs ...record.Value) *Expr { return &Expr{Op: OpIn, Field: field, Values: vs} }
func Nin(field string, vs ...record.Value) *Expr { return &Expr{Op: OpNin, Field: field, Values: vs} }
func Contains(field string, v record.Value) *Expr {
	return &Expr{Op: OpContains, Field: field, Value: v}
}
func Exists(field string) *Expr { return &Expr{Op: OpExists, Field: field} }
func Not(e *Expr) *Expr          { return &Expr{Op: OpNot, Children: []*Expr{e}} }
func And(es ...*Expr) *Expr      { return &Expr{Op: OpAnd, Children: es} }
func Or(es ...*Expr) *Expr       { return &Expr{Op: OpOr, Children: es} }

// Eval evaluates e against meta. Per spec §4.8, a comparison against a
// missing field evaluates to false (total evaluation, no errors), except
// `Not Exists` which is true for a missing field.
func Eval(e *Expr, meta record.Metadata) bool {
	if e == nil {
		return true
	}
	switch e.Op {
	case OpAnd:
		for _, c := range e.Children {
			if !Eval(c, meta) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range e.Children {
			if Eval(c, meta) {
				return true
			}
		}
		return false
	case OpNot:
		return !Eval(e.Children[0], meta)
	case OpExists:
		_, ok := meta[e.Field]
		return ok
	}

	v, ok := meta[e.Field]
	if !ok {
		return false
	}

	switch e.Op {
	case OpEq:
		return valuesEqual(v, e.Value)
	case OpNe:
		return !valuesEqual(v, e.Value)
	case OpGt:
		c, ok := compare(v, e.Value)
		return ok && c > 0
	case OpGte:
		c, ok := compare(v, e.Value)
		return ok && c >= 0
	case OpLt:
		c, ok := compare(v, e.Value)
		return ok && c < 0
	case OpLte:
		c, ok := compare(v, e.Value)
		return ok && c <= 0
	case OpIn:
		for _, cand := range e.Values {
			if valuesEqual(v, cand) {
				return true
			}
		}
		return false
	case OpNin:
		for _, cand := range e.Values {
			if valuesEqual(v, cand) {
				return false
			}
		}
		return true
	case OpContains:
		if v.Kind != record.KindArray {
			return false
		}
		for _, elem := range v.Arr {
			if valuesEqual(elem, e.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func valuesEqual(a, b record.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case record.KindString:
		return a.Str == b.Str
	case record.KindNumber:
		return a.Num == b.Num
	case record.KindBool:
		return a.Bool == b.Bool
	case record.KindNull:
		return true
	default:
		return false
	}
}

// compare returns -1/0/1 for ordered types (number, string); ok is false
// for types with no total order (bool, array, map, null, or mismatched
// kinds), making Gt/Gte/Lt/Lte false rather than erroring (spec §4.8 total
// evaluation).
func compare(a, b record.Value) (int, bool) {
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case record.KindNumber:
		switch {
		case a.Num < b.Num:
			return -1, true
		case a.Num > b.Num:
			return 1, true
		default:
			return 0, true
		}
	case record.KindString:
		switch {
		case a.Str < b.Str:
			return -1, true
		case a.Str > b.Str:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}
