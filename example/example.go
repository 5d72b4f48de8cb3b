// Package example provides the demo billing domain used by the server
// binary and the integration tests: invoices with a client, the client's
// profile, and invoice line items.
package example

import (
	"github.com/relux-works/drilldown"
	"github.com/relux-works/drilldown/memstore"
	"github.com/relux-works/drilldown/sqlstore"
)

// Schema bundles the demo entity graph.
type Schema struct {
	Invoice *drilldown.EntityType
	Client  *drilldown.EntityType
	Profile *drilldown.EntityType
	Item    *drilldown.EntityType
}

// NewSchema registers the demo entity types.
func NewSchema() *Schema {
	profile := drilldown.NewEntity("Profile")
	profile.Scalar("id", "first_name", "last_name", "email")

	client := drilldown.NewEntity("Client")
	client.Scalar("id", "name", "active")
	client.ToOne("profile", profile)

	invoice := drilldown.NewEntity("Invoice")
	item := drilldown.NewEntity("Item")
	item.Scalar("id", "description", "amount")
	item.ToOne("invoice", invoice)

	invoice.Scalar("id", "number", "total", "paid")
	invoice.ToOne("client", client)
	invoice.ToMany("items", item)

	return &Schema{Invoice: invoice, Client: client, Profile: profile, Item: item}
}

// Drilldowns returns the relationship paths invoice requests may traverse.
func (s *Schema) Drilldowns() []string {
	return []string{"client.profile", "items"}
}

// Seed loads a small fixed dataset into the store: five invoices across
// three clients.
func Seed(store *memstore.Store) {
	store.Load("Profile",
		drilldown.Record{"id": 1, "first_name": "Pete", "last_name": "Stewart", "email": "pete@example.com"},
		drilldown.Record{"id": 2, "first_name": "Anna", "last_name": "Marsh", "email": "anna@example.com"},
		drilldown.Record{"id": 3, "first_name": "Kofi", "last_name": "Mensah", "email": "kofi@example.com"},
	)
	store.Load("Client",
		drilldown.Record{"id": 1, "name": "Stewart Ltd", "active": true, "profile": 1},
		drilldown.Record{"id": 2, "name": "Marsh & Co", "active": true, "profile": 2},
		drilldown.Record{"id": 3, "name": "Mensah Trading", "active": false, "profile": 3},
	)
	store.Load("Invoice",
		drilldown.Record{"id": 1, "number": "INV-001", "total": 120, "paid": true, "client": 1, "items": []any{1, 2}},
		drilldown.Record{"id": 2, "number": "INV-002", "total": 80, "paid": false, "client": 1, "items": []any{3}},
		drilldown.Record{"id": 3, "number": "INV-003", "total": 410, "paid": false, "client": 2, "items": []any{4, 5}},
		drilldown.Record{"id": 4, "number": "INV-004", "total": 55, "paid": true, "client": 2, "items": []any{}},
		drilldown.Record{"id": 5, "number": "INV-005", "total": 240, "paid": false, "client": 3, "items": []any{6}},
	)
	store.Load("Item",
		drilldown.Record{"id": 1, "description": "Consulting", "amount": 100, "invoice": 1},
		drilldown.Record{"id": 2, "description": "Travel", "amount": 20, "invoice": 1},
		drilldown.Record{"id": 3, "description": "Hosting", "amount": 80, "invoice": 2},
		drilldown.Record{"id": 4, "description": "Design", "amount": 400, "invoice": 3},
		drilldown.Record{"id": 5, "description": "Stock photos", "amount": 10, "invoice": 3},
		drilldown.Record{"id": 6, "description": "Retainer", "amount": 240, "invoice": 5},
	)
}

// Tables maps the demo entities onto relational tables for the SQL engine.
func Tables() sqlstore.Mapping {
	return sqlstore.Mapping{
		"Profile": {
			Name: "profiles",
			Columns: map[string]string{
				"id": "id", "first_name": "first_name", "last_name": "last_name", "email": "email",
			},
		},
		"Client": {
			Name: "clients",
			Columns: map[string]string{
				"id": "id", "name": "name", "active": "active",
			},
			FK: map[string]string{"profile": "profile_id"},
		},
		"Invoice": {
			Name: "invoices",
			Columns: map[string]string{
				"id": "id", "number": "number", "total": "total", "paid": "paid",
			},
			FK:  map[string]string{"client": "client_id"},
			Ref: map[string]string{"items": "invoice_id"},
		},
		"Item": {
			Name: "items",
			Columns: map[string]string{
				"id": "id", "description": "description", "amount": "amount",
			},
			FK: map[string]string{"invoice": "invoice_id"},
		},
	}
}
