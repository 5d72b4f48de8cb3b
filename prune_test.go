package drilldown

import (
	"reflect"
	"testing"
)

func TestPruneRecordEmptyTree(t *testing.T) {
	invoice, _, _, _ := newTestSchema()
	rec := Record{"id": 7, "number": "INV-007", "total": 99.5}

	got := pruneRecord(invoice, rec, FieldTree{})
	want := map[string]any{"id": 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("prune = %v, want %v", got, want)
	}
}

func TestPruneRecordScalars(t *testing.T) {
	invoice, _, _, _ := newTestSchema()
	rec := Record{"id": 7, "number": "INV-007", "total": 99.5, "paid": true}

	tree := FieldTree{"number": FieldTree{}, "paid": FieldTree{}}
	got := pruneRecord(invoice, rec, tree)
	want := map[string]any{"number": "INV-007", "paid": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("prune = %v, want %v", got, want)
	}
}

func TestPruneRecordDoesNotMutateInput(t *testing.T) {
	invoice, _, _, _ := newTestSchema()
	rec := Record{"id": 7, "number": "INV-007", "client": Record{"id": 2, "name": "Acme"}}

	tree := FieldTree{"client": FieldTree{"name": FieldTree{}}}
	_ = pruneRecord(invoice, rec, tree)
	if _, ok := rec["number"]; !ok {
		t.Error("input record lost a field during pruning")
	}
	if nested, ok := rec["client"].(Record); !ok || nested["id"] != 2 {
		t.Errorf("input relation value changed: %v", rec["client"])
	}
}

func TestPruneRecordToOne(t *testing.T) {
	invoice, _, _, _ := newTestSchema()

	tests := []struct {
		name string
		rec  Record
		tree FieldTree
		want map[string]any
	}{
		{
			name: "leaf subtree degrades to identifier",
			rec:  Record{"id": 1, "client": Record{"id": 2, "name": "Acme"}},
			tree: FieldTree{"client": FieldTree{}},
			want: map[string]any{"client": 2},
		},
		{
			name: "default id-only subtree degrades to identifier",
			rec:  Record{"id": 1, "client": Record{"id": 2, "name": "Acme"}},
			tree: FieldTree{"client": FieldTree{"id": FieldTree{}}},
			want: map[string]any{"client": 2},
		},
		{
			name: "raw foreign key passes through",
			rec:  Record{"id": 1, "client": 2},
			tree: FieldTree{"client": FieldTree{}},
			want: map[string]any{"client": 2},
		},
		{
			name: "nested subtree recurses",
			rec:  Record{"id": 1, "client": Record{"id": 2, "name": "Acme", "active": true}},
			tree: FieldTree{"client": FieldTree{"name": FieldTree{}}},
			want: map[string]any{"client": map[string]any{"name": "Acme"}},
		},
		{
			name: "unresolved relation with nested subtree is null",
			rec:  Record{"id": 1, "client": nil},
			tree: FieldTree{"client": FieldTree{"name": FieldTree{}}},
			want: map[string]any{"client": nil},
		},
	}
	for _, tt := range tests {
		got := pruneRecord(invoice, tt.rec, tt.tree)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: prune = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPruneRecordToMany(t *testing.T) {
	invoice, _, _, _ := newTestSchema()
	rec := Record{
		"id": 1,
		"items": []Record{
			{"id": 10, "description": "widget", "amount": 5.0},
			{"id": 11, "description": "gadget", "amount": 7.5},
		},
	}

	// Default subtree: flat identifier list.
	got := pruneRecord(invoice, rec, FieldTree{"items": FieldTree{"id": FieldTree{}}})
	want := map[string]any{"items": []any{10, 11}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("id-only prune = %v, want %v", got, want)
	}

	// Explicit sub-fields: nested records.
	got = pruneRecord(invoice, rec, FieldTree{"items": FieldTree{"description": FieldTree{}}})
	want = map[string]any{"items": []map[string]any{
		{"description": "widget"},
		{"description": "gadget"},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("nested prune = %v, want %v", got, want)
	}
}

func TestPruneRecordToManyEmpty(t *testing.T) {
	invoice, _, _, _ := newTestSchema()
	rec := Record{"id": 1, "items": []Record{}}

	got := pruneRecord(invoice, rec, FieldTree{"items": FieldTree{"id": FieldTree{}}})
	ids, ok := got["items"].([]any)
	if !ok || len(ids) != 0 {
		t.Errorf("empty to-many must prune to an empty list, got %v", got["items"])
	}
}

func TestPruneRecordDeepNesting(t *testing.T) {
	invoice, _, _, _ := newTestSchema()
	rec := Record{
		"id": 1,
		"client": Record{
			"id":      2,
			"name":    "Acme",
			"profile": Record{"id": 3, "first_name": "Jo", "last_name": "Ader", "email": "jo@acme.test"},
		},
	}
	tree := FieldTree{
		"client": FieldTree{
			"name":    FieldTree{},
			"profile": FieldTree{"email": FieldTree{}},
		},
	}

	got := pruneRecord(invoice, rec, tree)
	want := map[string]any{
		"client": map[string]any{
			"name":    "Acme",
			"profile": map[string]any{"email": "jo@acme.test"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("prune = %v, want %v", got, want)
	}
}
