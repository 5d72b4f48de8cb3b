package drilldown

import "fmt"

// Wildcard expands to every visible field of the current entity in a fields
// projection.
const Wildcard = "ALL"

// FieldTree describes which fields to include in output, keyed by field name.
// A non-empty subtree descends into a relationship field; an empty subtree is
// a leaf. An empty tree at the root means "identifiers only".
type FieldTree map[string]FieldTree

// isIDOnly reports whether the tree is exactly the default {id: {}} subtree
// produced for a relation requested without sub-fields.
func (t FieldTree) isIDOnly() bool {
	if len(t) != 1 {
		return false
	}
	sub, ok := t["id"]
	return ok && len(sub) == 0
}

// fieldCompiler accumulates the outputs of one compileFields call. Relation
// paths are threaded through explicitly so the compiler stays free of shared
// mutable state.
type fieldCompiler struct {
	allowed pathSet
	hidden  pathSet

	joins     []string
	batches   []string
	joinSeen  pathSet
	batchSeen pathSet
}

// compileFields parses the requested dotted field strings into a FieldTree
// rooted at root, validating every relationship traversal against allowed and
// suppressing hidden paths. It also classifies each traversed relation: to-one
// relations become join paths, to-many relations become batch paths, each
// recorded once per distinct traversal path.
func compileFields(root *EntityType, requested []string, allowed, hidden pathSet) (FieldTree, []string, []string, error) {
	fc := &fieldCompiler{
		allowed:   allowed,
		hidden:    hidden,
		joinSeen:  make(pathSet),
		batchSeen: make(pathSet),
	}
	tree := make(FieldTree)
	for _, f := range requested {
		segs := splitPath(f)
		if len(segs) == 0 {
			continue
		}
		if err := fc.add(root, tree, segs, ""); err != nil {
			return nil, nil, nil, err
		}
	}
	return tree, fc.joins, fc.batches, nil
}

// add walks one requested path into the tree. prefix is the dotted relation
// path leading to current (empty at the root).
func (fc *fieldCompiler) add(current *EntityType, tree FieldTree, segs []string, prefix string) error {
	name := segs[0]
	rest := segs[1:]

	if name == Wildcard {
		return fc.expandAll(current, tree, prefix)
	}

	if !current.FieldExists(name) {
		return &Error{
			Code:    ErrField,
			Message: fmt.Sprintf("error in fields: %q is not a valid field", joinPath(prefix, name)),
			Details: map[string]any{"field": joinPath(prefix, name)},
		}
	}

	path := joinPath(prefix, name)
	if fc.hidden.has(path) {
		// Hidden fields are dropped, never surfaced as errors.
		return nil
	}

	kind := current.FieldKind(name)
	if !kind.IsRelation() {
		if len(rest) > 0 {
			// Scalar fields cannot have children.
			return &Error{
				Code:    ErrField,
				Message: fmt.Sprintf("error in fields: %q is not a valid field", joinPath(path, rest[0])),
				Details: map[string]any{"field": joinPath(path, rest[0])},
			}
		}
		if tree[name] == nil {
			tree[name] = make(FieldTree)
		}
		return nil
	}

	if tree[name] == nil {
		tree[name] = make(FieldTree)
	}
	sub := tree[name]

	// A to-one relation with no sub-fields is just its identifier column;
	// no traversal happens, so no drilldown registration is required.
	if kind == KindToOne && len(rest) == 0 {
		return nil
	}

	if !fc.allowed.has(path) {
		return &Error{
			Code:    ErrField,
			Message: fmt.Sprintf("error in fields: %s is not a valid drilldown", path),
			Details: map[string]any{"path": path},
		}
	}
	fc.record(kind, path)

	related := current.RelatedType(name)
	if len(rest) > 0 {
		return fc.add(related, sub, rest, path)
	}
	// Default a traversed relation without sub-fields to its identifiers.
	return fc.add(related, sub, []string{"id"}, path)
}

// expandAll adds every visible field of current as if individually requested.
// To-many relations outside the allowed set are silently skipped — the
// wildcard never surfaces a forbidden relation.
func (fc *fieldCompiler) expandAll(current *EntityType, tree FieldTree, prefix string) error {
	for _, name := range current.FieldNames() {
		path := joinPath(prefix, name)
		if fc.hidden.has(path) {
			continue
		}
		if current.FieldKind(name) == KindToMany && !fc.allowed.has(path) {
			continue
		}
		if err := fc.add(current, tree, []string{name}, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (fc *fieldCompiler) record(kind FieldKind, path string) {
	if kind == KindToOne {
		if !fc.joinSeen.has(path) {
			fc.joinSeen.add(path)
			fc.joins = append(fc.joins, path)
		}
		return
	}
	if !fc.batchSeen.has(path) {
		fc.batchSeen.add(path)
		fc.batches = append(fc.batches, path)
	}
}
