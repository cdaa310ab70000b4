package query

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/roach88/ormlite/internal/entity"
	"github.com/roach88/ormlite/internal/stored"
)

// Compile renders p as a WHERE condition (without the keyword) and its
// positional arguments. A nil predicate yields an empty condition.
func Compile(p Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	var args []any
	sql, err := compile(p, &args)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

func compile(p Predicate, args *[]any) (string, error) {
	switch pred := p.(type) {
	case Comparison:
		return compileComparison(pred, args)
	case *Comparison:
		return compileComparison(*pred, args)
	case And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1", args)
	case Or:
		return compileJunction(pred.Predicates, " OR ", "1 = 0", args)
	case Not:
		if pred.Predicate == nil {
			return "", fmt.Errorf("NOT requires a predicate")
		}
		inner, err := compile(pred.Predicate, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case IsNull:
		if err := checkField(pred.Field); err != nil {
			return "", err
		}
		return pred.Field + " IS NULL", nil
	case In:
		return compileIn(pred, args)
	case Raw:
		for i, a := range pred.Args {
			v, err := Argument(a)
			if err != nil {
				return "", fmt.Errorf("fragment argument %d: %w", i, err)
			}
			*args = append(*args, v)
		}
		return "(" + translateOperators(pred.Fragment) + ")", nil
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileComparison(c Comparison, args *[]any) (string, error) {
	if err := checkField(c.Field); err != nil {
		return "", err
	}
	switch c.Op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
	default:
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}

	if c.Value == nil {
		switch c.Op {
		case OpEq:
			return c.Field + " IS NULL", nil
		case OpNe:
			return c.Field + " IS NOT NULL", nil
		default:
			return "", fmt.Errorf("operator %s cannot compare %s with NULL", c.Op, c.Field)
		}
	}

	v, err := Argument(c.Value)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", c.Field, err)
	}
	*args = append(*args, v)
	return fmt.Sprintf("%s %s ?", c.Field, c.Op), nil
}

func compileJunction(preds []Predicate, sep, empty string, args *[]any) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, child := range preds {
		if child == nil {
			continue
		}
		sql, err := compile(child, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return empty, nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func compileIn(in In, args *[]any) (string, error) {
	if err := checkField(in.Field); err != nil {
		return "", err
	}
	if len(in.Values) == 0 {
		return "1 = 0", nil
	}
	marks := make([]string, len(in.Values))
	for i, raw := range in.Values {
		v, err := Argument(raw)
		if err != nil {
			return "", fmt.Errorf("field %s value %d: %w", in.Field, i, err)
		}
		*args = append(*args, v)
		marks[i] = "?"
	}
	return fmt.Sprintf("%s IN (%s)", in.Field, strings.Join(marks, ", ")), nil
}

func checkField(name string) error {
	if !entity.ValidIdentifier(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

// translateOperators maps the && and || aliases onto SQL keywords.
func translateOperators(fragment string) string {
	return strings.NewReplacer("&&", "AND", "||", "OR").Replace(fragment)
}

// Argument converts a filter literal into a driver argument of kind null,
// int64, float64 or string.
func Argument(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case stored.Value:
		return stored.Arg(val), nil
	case string:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case encoding.TextMarshaler:
		text, err := val.MarshalText()
		if err != nil {
			return nil, err
		}
		return string(text), nil
	default:
		return nil, fmt.Errorf("unsupported filter value type %T", v)
	}
}
