// Package query builds row filters for entity lookups.
//
// Typed predicates compile to parameterized SQL; values are never
// interpolated. Raw fragments are the escape hatch for anything the typed
// predicates cannot express and are passed through verbatim apart from the
// && and || operator aliases.
package query

import (
	"github.com/roach88/ormlite/internal/entity"
)

// Predicate is a filter over the rows of one entity table.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
)

// Comparison compares a column with a literal.
//
//	<field> <op> ?
//
// A nil Value with OpEq or OpNe compiles to IS NULL / IS NOT NULL.
type Comparison struct {
	Field string
	Op    Op
	Value any
}

func (Comparison) predicateNode() {}

// And is satisfied when every child is. An empty And matches all rows.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is satisfied when any child is. An empty Or matches no rows.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates its child.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// IsNull matches rows whose field is NULL.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// In matches rows whose field equals one of Values. An empty list matches
// no rows.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// Raw is an opaque SQL condition. The fragment is the caller's
// responsibility: it is not validated or escaped.
type Raw struct {
	Fragment string
	Args     []any
}

func (Raw) predicateNode() {}

// Eq matches field = v.
func Eq(field string, v any) Predicate { return Comparison{Field: field, Op: OpEq, Value: v} }

// Ne matches field <> v.
func Ne(field string, v any) Predicate { return Comparison{Field: field, Op: OpNe, Value: v} }

// Lt matches field < v.
func Lt(field string, v any) Predicate { return Comparison{Field: field, Op: OpLt, Value: v} }

// Le matches field <= v.
func Le(field string, v any) Predicate { return Comparison{Field: field, Op: OpLe, Value: v} }

// Gt matches field > v.
func Gt(field string, v any) Predicate { return Comparison{Field: field, Op: OpGt, Value: v} }

// Ge matches field >= v.
func Ge(field string, v any) Predicate { return Comparison{Field: field, Op: OpGe, Value: v} }

// Like matches field LIKE pattern.
func Like(field, pattern string) Predicate {
	return Comparison{Field: field, Op: OpLike, Value: pattern}
}

// AllOf combines predicates with AND.
func AllOf(preds ...Predicate) Predicate { return And{Predicates: preds} }

// AnyOf combines predicates with OR.
func AnyOf(preds ...Predicate) Predicate { return Or{Predicates: preds} }

// Negate wraps p in NOT.
func Negate(p Predicate) Predicate { return Not{Predicate: p} }

// Null matches rows whose field is NULL.
func Null(field string) Predicate { return IsNull{Field: field} }

// OneOf matches rows whose field is one of values.
func OneOf(field string, values ...any) Predicate { return In{Field: field, Values: values} }

// Where wraps an opaque SQL condition with optional positional arguments.
func Where(fragment string, args ...any) Predicate { return Raw{Fragment: fragment, Args: args} }

// ByKey matches the row with the given primary key.
func ByKey(key int64) Predicate { return Eq(entity.PrimaryKeyColumn, key) }

// Fields lists the column names referenced by the typed predicates in p,
// in first-seen order. Raw fragments contribute nothing.
func Fields(p Predicate) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Comparison:
			add(pred.Field)
		case IsNull:
			add(pred.Field)
		case In:
			add(pred.Field)
		case And:
			for _, child := range pred.Predicates {
				walk(child)
			}
		case Or:
			for _, child := range pred.Predicates {
				walk(child)
			}
		case Not:
			walk(pred.Predicate)
		}
	}
	walk(p)
	return names
}
