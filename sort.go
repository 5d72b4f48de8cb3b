package drilldown

import "strings"

// parseOrderBy splits the comma-separated order_by parameter into specs.
// A leading '-' means descending. Paths are passed to the engine verbatim
// (after canonicalization); they are not validated against the allowed
// drilldowns, so a bad path only surfaces at execution time.
func parseOrderBy(raw string) []OrderSpec {
	if raw == "" {
		return nil
	}
	var specs []OrderSpec
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(part, "-") {
			desc = true
			part = part[1:]
		}
		path := canonicalPath(part)
		if path == "" {
			continue
		}
		specs = append(specs, OrderSpec{Path: path, Desc: desc})
	}
	return specs
}
