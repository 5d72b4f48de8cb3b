package drilldown

// pruneRecord transforms an executed row into an output record containing
// only the fields requested by tree. Relation values descend recursively.
// The input record is never mutated.
//
// An empty tree means the request carried no fields parameter: output is just
// the identifier. A relation whose subtree is exactly the default {id: {}}
// degrades to plain identifiers rather than single-key nested records.
func pruneRecord(entity *EntityType, rec Record, tree FieldTree) map[string]any {
	if len(tree) == 0 {
		return map[string]any{"id": rec["id"]}
	}

	out := make(map[string]any, len(tree))
	for _, name := range entity.FieldNames() {
		sub, requested := tree[name]
		if !requested {
			continue
		}
		value := rec[name]
		switch entity.FieldKind(name) {
		case KindScalar:
			out[name] = value
		case KindToOne:
			if len(sub) == 0 || sub.isIDOnly() {
				out[name] = identifierOf(value)
				continue
			}
			if nested := asRecord(value); nested != nil {
				out[name] = pruneRecord(entity.RelatedType(name), nested, sub)
			} else {
				out[name] = nil
			}
		case KindToMany:
			out[name] = pruneMany(entity.RelatedType(name), value, sub)
		}
	}
	return out
}

// pruneMany shapes a to-many relation value: a flat identifier slice for the
// default subtree, nested output records otherwise.
func pruneMany(related *EntityType, value any, sub FieldTree) any {
	items := manyItems(value)
	if len(sub) == 0 || sub.isIDOnly() {
		ids := make([]any, 0, len(items))
		for _, item := range items {
			ids = append(ids, identifierOf(item))
		}
		return ids
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if nested := asRecord(item); nested != nil {
			records = append(records, pruneRecord(related, nested, sub))
		}
	}
	return records
}

// identifierOf extracts the identifier from a relation value: resolved
// records yield their id field, raw identifiers pass through.
func identifierOf(value any) any {
	if rec := asRecord(value); rec != nil {
		return rec["id"]
	}
	return value
}

func asRecord(value any) Record {
	switch v := value.(type) {
	case Record:
		return v
	case map[string]any:
		return v
	default:
		return nil
	}
}

// manyItems normalizes the engine's to-many representations to a flat slice.
func manyItems(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []Record:
		items := make([]any, len(v))
		for i, r := range v {
			items[i] = r
		}
		return items
	case []map[string]any:
		items := make([]any, len(v))
		for i, r := range v {
			items[i] = r
		}
		return items
	case []any:
		return v
	default:
		return []any{v}
	}
}
