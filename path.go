package drilldown

import "strings"

// Paths traverse the entity graph as chains of field names. Requests write
// them with dots (client.profile.first_name); declared drilldowns and filter
// keys historically used double underscores. Internally every path is
// canonicalized to the dotted form, and all three compilers (drilldowns,
// fields, filters) share the same splitting rules.

// splitPath splits a dotted or double-underscore path into its segments.
// Empty segments and surrounding whitespace are dropped.
func splitPath(path string) []string {
	path = strings.ReplaceAll(path, "__", ".")
	parts := strings.Split(path, ".")
	segs := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// joinPath appends a segment to a dotted prefix. An empty prefix yields the
// segment itself.
func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// canonicalPath rewrites a path in dotted form.
func canonicalPath(path string) string {
	return strings.Join(splitPath(path), ".")
}

// pathSet is a set of canonical dotted paths.
type pathSet map[string]struct{}

func newPathSet(paths []string) pathSet {
	ps := make(pathSet, len(paths))
	for _, p := range paths {
		ps.add(canonicalPath(p))
	}
	return ps
}

func (ps pathSet) add(path string) {
	ps[path] = struct{}{}
}

func (ps pathSet) has(path string) bool {
	_, ok := ps[path]
	return ok
}
