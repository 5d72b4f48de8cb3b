// Package drilldown compiles GET-style request parameters — field
// projections, relation filters, ordering, and pagination — into a validated
// query execution plan over a declared relational entity graph, and prunes
// the executed rows down to exactly the requested nested field tree.
//
// The safety model is allowlist-only: a relationship may be traversed (in a
// projection or a filter) only if its full path appears in the endpoint's
// declared drilldowns; anything else is rejected, never guessed.
package drilldown

import "fmt"

// ValidateDrilldowns expands the declared relationship paths into the
// canonical allowed-path set for root. Every prefix of a declared path is
// itself added, so the result is closed under prefixes. Paths may be written
// with dots or double underscores.
//
// Validation walks each path segment by segment: a segment that is not a
// field of the current entity, or is a field but not a relation, fails the
// whole declared list. This is a configuration-time check — fail loud rather
// than degrade partially.
func ValidateDrilldowns(root *EntityType, declared []string) ([]string, error) {
	var canonical []string
	seen := make(pathSet)

	var walk func(current *EntityType, segs []string, prefix string) error
	walk = func(current *EntityType, segs []string, prefix string) error {
		name := segs[0]
		if !current.FieldExists(name) {
			return &Error{
				Code:    ErrDrilldown,
				Message: fmt.Sprintf("error in drilldowns: %q is not a valid field in %s", name, current.Name()),
				Details: map[string]any{"field": name, "entity": current.Name()},
			}
		}
		if !current.FieldKind(name).IsRelation() {
			return &Error{
				Code:    ErrDrilldown,
				Message: fmt.Sprintf("error in drilldowns: %q is not a relationship field", name),
				Details: map[string]any{"field": name, "entity": current.Name()},
			}
		}
		prefix = joinPath(prefix, name)
		// Missing intermediate paths are synthesized here, e.g. declaring
		// client.profile also registers client.
		if !seen.has(prefix) {
			seen.add(prefix)
			canonical = append(canonical, prefix)
		}
		if len(segs) > 1 {
			return walk(current.RelatedType(name), segs[1:], prefix)
		}
		return nil
	}

	for _, dd := range declared {
		segs := splitPath(dd)
		if len(segs) == 0 {
			continue
		}
		if err := walk(root, segs, ""); err != nil {
			return nil, err
		}
	}
	return canonical, nil
}
