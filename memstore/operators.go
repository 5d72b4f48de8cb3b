package memstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Supported filter operator suffixes. The empty suffix is equality.
var operators = map[string]bool{
	"":            true,
	"exact":       true,
	"iexact":      true,
	"gt":          true,
	"gte":         true,
	"lt":          true,
	"lte":         true,
	"isnull":      true,
	"in":          true,
	"startswith":  true,
	"istartswith": true,
	"endswith":    true,
	"iendswith":   true,
	"contains":    true,
	"icontains":   true,
}

func knownOperator(op string) bool {
	return operators[op]
}

// anyMatch reports whether any of the values satisfies the operator against
// the literal. To-many traversals produce several values; one match suffices.
func anyMatch(values []any, op string, literal any) (bool, error) {
	if op == "isnull" {
		want, _ := literal.(bool)
		null := true
		for _, v := range values {
			if v != nil {
				null = false
				break
			}
		}
		if len(values) == 0 {
			null = true
		}
		return null == want, nil
	}

	for _, v := range values {
		ok, err := match(v, op, literal)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func match(value any, op string, literal any) (bool, error) {
	switch op {
	case "", "exact":
		return equal(value, literal), nil
	case "iexact":
		return strings.EqualFold(stringOf(value), stringOf(literal)), nil
	case "gt", "gte", "lt", "lte":
		return compareNumeric(value, op, literal)
	case "in":
		list, ok := literal.([]string)
		if !ok {
			return false, fmt.Errorf("in operator requires a value list")
		}
		for _, item := range list {
			if equal(value, item) {
				return true, nil
			}
		}
		return false, nil
	case "startswith":
		return strings.HasPrefix(stringOf(value), stringOf(literal)), nil
	case "istartswith":
		return strings.HasPrefix(strings.ToLower(stringOf(value)), strings.ToLower(stringOf(literal))), nil
	case "endswith":
		return strings.HasSuffix(stringOf(value), stringOf(literal)), nil
	case "iendswith":
		return strings.HasSuffix(strings.ToLower(stringOf(value)), strings.ToLower(stringOf(literal))), nil
	case "contains":
		return strings.Contains(stringOf(value), stringOf(literal)), nil
	case "icontains":
		return strings.Contains(strings.ToLower(stringOf(value)), strings.ToLower(stringOf(literal))), nil
	default:
		return false, fmt.Errorf("unsupported filter operator %q", op)
	}
}

// equal compares a stored value against a request literal. Booleans compare
// as booleans; everything else compares through its string form, which lets
// text literals match numeric columns.
func equal(value, literal any) bool {
	if b, ok := literal.(bool); ok {
		vb, isBool := value.(bool)
		return isBool && vb == b
	}
	if value == nil {
		return false
	}
	return stringOf(value) == stringOf(literal)
}

func compareNumeric(value any, op string, literal any) (bool, error) {
	lf, err := toFloat(literal)
	if err != nil {
		return false, fmt.Errorf("bad filter value %v: %w", literal, err)
	}
	vf, err := toFloat(value)
	if err != nil {
		return false, nil // non-numeric stored value never matches a range
	}
	switch op {
	case "gt":
		return vf > lf, nil
	case "gte":
		return vf >= lf, nil
	case "lt":
		return vf < lf, nil
	default:
		return vf <= lf, nil
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("not a number: %T", value)
	}
}

func stringOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// compareValues orders two heterogeneous values for sorting: numbers
// numerically when both sides parse, strings lexically otherwise. Nil sorts
// first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(stringOf(a), stringOf(b))
}
