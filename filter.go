package drilldown

import (
	"fmt"
	"sort"
	"strings"
)

// operatorSep separates the dotted field path from the operator suffix in a
// filter key, e.g. "client.profile.first_name__istartswith".
const operatorSep = "__"

// compileFilters parses each filter parameter key into a validated
// relation-traversal chain plus a trailing operator suffix. Every relation
// hop before the terminal field must be a registered allowed path; the
// terminal segment must be a real field of the entity it lands on.
//
// A bad filter fails the request; in lenient mode it is skipped and a
// warning is collected instead. Literal "true"/"True" and "false"/"False"
// coerce to booleans; "in" values split on commas; everything else passes
// through as text for the engine to coerce.
func compileFilters(root *EntityType, params map[string]string, allowed pathSet, lenient bool) ([]Filter, []string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		chain    []Filter
		warnings []string
	)
	for _, key := range keys {
		head, op := splitOperator(key)
		path, reason := resolveFilterPath(root, head, allowed)
		if reason != "" {
			if lenient {
				warnings = append(warnings, fmt.Sprintf("%q is not a valid parameter", canonicalPath(head)))
				continue
			}
			return nil, nil, &Error{
				Code:    ErrFilter,
				Message: reason,
				Details: map[string]any{"filter": key},
			}
		}
		chain = append(chain, Filter{Path: path, Op: op, Value: coerceLiteral(params[key], op)})
	}
	return chain, warnings, nil
}

// splitOperator splits a raw filter key into its dotted path and operator
// suffix. No suffix means equality.
func splitOperator(key string) (path, op string) {
	if i := strings.Index(key, operatorSep); i >= 0 {
		return key[:i], key[i+len(operatorSep):]
	}
	return key, ""
}

// resolveFilterPath walks the dotted path against the schema and the allowed
// drilldowns. It returns the canonical path, or a non-empty reason when the
// filter is invalid.
func resolveFilterPath(root *EntityType, dotted string, allowed pathSet) (string, string) {
	segs := splitPath(dotted)
	if len(segs) == 0 {
		return "", fmt.Sprintf("%q is not a valid filter", dotted)
	}

	current := root
	prefix := ""
	for i, name := range segs {
		if !current.FieldExists(name) {
			return "", fmt.Sprintf("%q is not a valid filter", name)
		}
		prefix = joinPath(prefix, name)
		if i == len(segs)-1 {
			break
		}
		// Intermediate hop: must be an allowed drilldown and a relation.
		if !allowed.has(prefix) {
			return "", fmt.Sprintf("error in filters: %s", prefix)
		}
		if !current.FieldKind(name).IsRelation() {
			return "", fmt.Sprintf("error in filters: %s has no children", prefix)
		}
		current = current.RelatedType(name)
	}
	return prefix, ""
}

// coerceLiteral converts boolean literal text and comma-separated "in" lists.
// All other values pass through unconverted; the engine owns type coercion
// against the actual field type.
func coerceLiteral(value, op string) any {
	if op == "in" {
		return strings.Split(value, ",")
	}
	switch value {
	case "true", "True":
		return true
	case "false", "False":
		return false
	}
	return value
}
