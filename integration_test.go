package drilldown_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/relux-works/drilldown"
	"github.com/relux-works/drilldown/example"
	"github.com/relux-works/drilldown/memstore"
)

// newInvoiceEndpoint wires the demo billing schema around the seeded
// in-memory store, the same way the server binary does.
func newInvoiceEndpoint(t *testing.T, opts ...drilldown.EndpointOption) *drilldown.Endpoint {
	t.Helper()
	schema := example.NewSchema()
	store := memstore.New()
	example.Seed(store)

	base := func(ctx context.Context) drilldown.QueryBuilder {
		return store.Query(schema.Invoice)
	}
	opts = append([]drilldown.EndpointOption{
		drilldown.WithDrilldowns(schema.Drilldowns()...),
	}, opts...)
	return drilldown.NewEndpoint(schema.Invoice, base, opts...)
}

func get(t *testing.T, ep *drilldown.Endpoint, params map[string]string) *drilldown.Result {
	t.Helper()
	res, err := ep.Get(context.Background(), params)
	if err != nil {
		t.Fatalf("Get(%v): %v", params, err)
	}
	return res
}

func TestEndToEndDefaultListing(t *testing.T) {
	ep := newInvoiceEndpoint(t)
	res := get(t, ep, nil)

	if len(res.Records) != 5 {
		t.Fatalf("records = %d, want 5", len(res.Records))
	}
	if res.TotalCount != 5 {
		t.Errorf("total = %d, want 5", res.TotalCount)
	}
	// Identifiers only when no fields were requested.
	for _, rec := range res.Records {
		if len(rec) != 1 || rec["id"] == nil {
			t.Fatalf("record = %v, want identifier only", rec)
		}
	}
}

func TestEndToEndPagination(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]string
		wantRows  int
		wantTotal int
	}{
		{"limit one", map[string]string{"limit": "1"}, 1, 5},
		{"offset past some", map[string]string{"offset": "3"}, 2, 5},
		{"offset with generous limit", map[string]string{"offset": "2", "limit": "100"}, 3, 5},
		{"offset past end", map[string]string{"offset": "10"}, 0, 5},
		{"limit equals size", map[string]string{"limit": "5"}, 5, 5},
		{"no window", nil, 5, 5},
	}
	for _, tt := range tests {
		ep := newInvoiceEndpoint(t)
		res := get(t, ep, tt.params)
		if len(res.Records) != tt.wantRows {
			t.Errorf("%s: records = %d, want %d", tt.name, len(res.Records), tt.wantRows)
		}
		if res.TotalCount != tt.wantTotal {
			t.Errorf("%s: total = %d, want %d", tt.name, res.TotalCount, tt.wantTotal)
		}
	}
}

func TestEndToEndFilterAcrossJoin(t *testing.T) {
	ep := newInvoiceEndpoint(t)
	res := get(t, ep, map[string]string{
		"fields":                   "number,client.name",
		"client.profile.last_name": "Marsh",
		"order_by":                 "number",
	})

	if len(res.Records) != 2 {
		t.Fatalf("records = %v, want INV-003 and INV-004", res.Records)
	}
	if res.Records[0]["number"] != "INV-003" || res.Records[1]["number"] != "INV-004" {
		t.Errorf("records = %v", res.Records)
	}
	client, ok := res.Records[0]["client"].(map[string]any)
	if !ok || client["name"] != "Marsh & Co" {
		t.Errorf("client = %v, want nested name", res.Records[0]["client"])
	}
}

func TestEndToEndFilterOperators(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   []string
	}{
		{"equality bool", map[string]string{"paid": "true", "order_by": "number"}, []string{"INV-001", "INV-004"}},
		{"gt", map[string]string{"total__gt": "200", "order_by": "number"}, []string{"INV-003", "INV-005"}},
		{"lte", map[string]string{"total__lte": "80", "order_by": "number"}, []string{"INV-002", "INV-004"}},
		{"in list", map[string]string{"number__in": "INV-001,INV-005", "order_by": "number"}, []string{"INV-001", "INV-005"}},
		{"istartswith across join", map[string]string{"client.name__istartswith": "mensah", "order_by": "number"}, []string{"INV-005"}},
		{"icontains", map[string]string{"items.description__icontains": "consult", "order_by": "number"}, []string{"INV-001"}},
		{"isnull false", map[string]string{"client__isnull": "false", "order_by": "number"}, []string{"INV-001", "INV-002", "INV-003", "INV-004", "INV-005"}},
	}
	for _, tt := range tests {
		ep := newInvoiceEndpoint(t)
		params := tt.params
		params["fields"] = "number"
		res := get(t, ep, params)

		var got []string
		for _, rec := range res.Records {
			got = append(got, rec["number"].(string))
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: numbers = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEndToEndToManyShapes(t *testing.T) {
	ep := newInvoiceEndpoint(t)

	// Bare relation: flat identifier list.
	res := get(t, ep, map[string]string{"fields": "number,items", "number": "INV-001"})
	if ids, ok := res.Records[0]["items"].([]any); !ok || !reflect.DeepEqual(ids, []any{1, 2}) {
		t.Errorf("items = %v, want [1 2]", res.Records[0]["items"])
	}

	// Sub-fields: nested records.
	res = get(t, ep, map[string]string{"fields": "number,items.description", "number": "INV-003"})
	items, ok := res.Records[0]["items"].([]map[string]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v, want two nested records", res.Records[0]["items"])
	}
	if items[0]["description"] != "Design" || items[1]["description"] != "Stock photos" {
		t.Errorf("items = %v", items)
	}

	// An invoice with no items prunes to an empty list, not null.
	res = get(t, ep, map[string]string{"fields": "number,items", "number": "INV-004"})
	if ids, ok := res.Records[0]["items"].([]any); !ok || len(ids) != 0 {
		t.Errorf("items = %v, want empty list", res.Records[0]["items"])
	}
}

func TestEndToEndWildcardWithHidden(t *testing.T) {
	ep := newInvoiceEndpoint(t, drilldown.WithHide("total"))
	res := get(t, ep, map[string]string{"fields": "ALL", "number": "INV-001"})

	rec := res.Records[0]
	if _, ok := rec["total"]; ok {
		t.Errorf("hidden total leaked into output: %v", rec)
	}
	for _, name := range []string{"id", "number", "paid", "client", "items"} {
		if _, ok := rec[name]; !ok {
			t.Errorf("wildcard output missing %q: %v", name, rec)
		}
	}
	// Bare to-one under ALL degrades to its identifier.
	if rec["client"] != 1 {
		t.Errorf("client = %v, want bare identifier 1", rec["client"])
	}
}

func TestEndToEndHiddenFilterIgnored(t *testing.T) {
	ep := newInvoiceEndpoint(t, drilldown.WithHide("total"))
	res := get(t, ep, map[string]string{"fields": "number", "total__gt": "100"})

	// The hidden filter is dropped entirely, so every row comes back.
	if len(res.Records) != 5 {
		t.Errorf("records = %d, want all 5", len(res.Records))
	}
}

func TestEndToEndQueryCounts(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]string
		maxQueries int
	}{
		{"plain listing", map[string]string{"fields": "number"}, 1},
		{"join only", map[string]string{"fields": "number,client.profile.email"}, 1},
		{"one batch path", map[string]string{"fields": "number,items.amount"}, 2},
		{"filter across join", map[string]string{"fields": "number", "client.profile.last_name": "Marsh"}, 1},
	}
	for _, tt := range tests {
		ep := newInvoiceEndpoint(t)
		res := get(t, ep, tt.params)
		if res.Queries > tt.maxQueries {
			t.Errorf("%s: queries = %d, want <= %d", tt.name, res.Queries, tt.maxQueries)
		}
	}
}

func TestEndToEndOrderingAcrossJoin(t *testing.T) {
	ep := newInvoiceEndpoint(t)
	res := get(t, ep, map[string]string{
		"fields":   "number",
		"order_by": "client.profile.last_name,-total",
	})

	var got []string
	for _, rec := range res.Records {
		got = append(got, rec["number"].(string))
	}
	// Marsh (410, 55), Mensah (240), Stewart (120, 80).
	want := []string{"INV-003", "INV-004", "INV-005", "INV-001", "INV-002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("numbers = %v, want %v", got, want)
	}
}

func TestEndToEndBadOrderByIsOrderingError(t *testing.T) {
	ep := newInvoiceEndpoint(t)
	_, err := ep.Get(context.Background(), map[string]string{"order_by": "warehouse"})
	if err == nil {
		t.Fatal("expected ordering error")
	}
	var derr *drilldown.Error
	if !errors.As(err, &derr) || derr.Code != drilldown.ErrOrdering {
		t.Errorf("err = %v, want code %s", err, drilldown.ErrOrdering)
	}
}

func TestEndToEndUndeclaredDrilldownRejected(t *testing.T) {
	ep := newInvoiceEndpoint(t)
	_, err := ep.Get(context.Background(), map[string]string{"fields": "items.invoice.number"})
	if err == nil {
		t.Fatal("expected field error for undeclared traversal")
	}
	var derr *drilldown.Error
	if !errors.As(err, &derr) || derr.Code != drilldown.ErrField {
		t.Errorf("err = %v, want code %s", err, drilldown.ErrField)
	}
}

func TestEndToEndIgnoredParameter(t *testing.T) {
	ep := newInvoiceEndpoint(t, drilldown.WithIgnore("api_key"))
	res := get(t, ep, map[string]string{"fields": "number", "api_key": "s3cret"})
	if len(res.Records) != 5 {
		t.Errorf("records = %d, want 5", len(res.Records))
	}
}

func TestEndToEndUnknownFilterRejected(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"unknown field", "warehouse"},
		{"unknown nested field", "client.profile.dog_name"},
		{"undeclared relation path", "items.invoice.number"},
	}
	for _, tt := range tests {
		ep := newInvoiceEndpoint(t)
		_, err := ep.Get(context.Background(), map[string]string{tt.key: "Freddyboy"})
		if err == nil {
			t.Fatalf("%s: bad filter %q must fail the request", tt.name, tt.key)
		}
		var derr *drilldown.Error
		if !errors.As(err, &derr) || derr.Code != drilldown.ErrFilter {
			t.Errorf("%s: err = %v, want code %s", tt.name, err, drilldown.ErrFilter)
		}
	}
}

func TestEndToEndLenientWarning(t *testing.T) {
	ep := newInvoiceEndpoint(t, drilldown.WithLenient())
	res := get(t, ep, map[string]string{"fields": "number", "warehouse": "1"})
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want one entry", res.Warnings)
	}
	if len(res.Records) != 5 {
		t.Errorf("records = %d, want 5 despite the bad filter", len(res.Records))
	}
}
