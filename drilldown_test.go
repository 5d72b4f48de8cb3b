package drilldown

import (
	"errors"
	"testing"
)

// newTestSchema builds the invoice/client/profile/item graph used across the
// package tests.
func newTestSchema() (invoice, client, profile, item *EntityType) {
	profile = NewEntity("Profile")
	profile.Scalar("id", "first_name", "last_name", "email")

	client = NewEntity("Client")
	client.Scalar("id", "name", "active")
	client.ToOne("profile", profile)

	invoice = NewEntity("Invoice")
	item = NewEntity("Item")
	item.Scalar("id", "description", "amount")
	item.ToOne("invoice", invoice)

	invoice.Scalar("id", "number", "total", "paid")
	invoice.ToOne("client", client)
	invoice.ToMany("items", item)
	return invoice, client, profile, item
}

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	return e
}

func TestValidateDrilldownsExpandsPrefixes(t *testing.T) {
	invoice, _, _, _ := newTestSchema()

	got, err := ValidateDrilldowns(invoice, []string{"client.profile", "items"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"client", "client.profile", "items"}
	if len(got) != len(want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidateDrilldownsClosureInvariant(t *testing.T) {
	invoice, _, _, _ := newTestSchema()

	got, err := ValidateDrilldowns(invoice, []string{"items.invoice.client.profile"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set := newPathSet(got)
	// Every strict prefix of every member must itself be a member.
	for _, p := range []string{"items", "items.invoice", "items.invoice.client", "items.invoice.client.profile"} {
		if !set.has(p) {
			t.Errorf("canonical set missing prefix %q: %v", p, got)
		}
	}
}

func TestValidateDrilldownsDoubleUnderscoreSeparator(t *testing.T) {
	invoice, _, _, _ := newTestSchema()

	got, err := ValidateDrilldowns(invoice, []string{"client__profile"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "client" || got[1] != "client.profile" {
		t.Errorf("paths = %v, want [client client.profile]", got)
	}
}

func TestValidateDrilldownsDeduplicates(t *testing.T) {
	invoice, _, _, _ := newTestSchema()

	got, err := ValidateDrilldowns(invoice, []string{"client", "client.profile", "client"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("paths = %v, want 2 entries", got)
	}
}

func TestValidateDrilldownsErrors(t *testing.T) {
	invoice, _, _, _ := newTestSchema()

	tests := []struct {
		name     string
		declared []string
	}{
		{"unknown field", []string{"warehouse"}},
		{"not a relation", []string{"total"}},
		{"unknown nested field", []string{"client.warehouse"}},
		{"nested non-relation", []string{"client.name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateDrilldowns(invoice, tt.declared)
			if err == nil {
				t.Fatalf("expected error for %v, got paths %v", tt.declared, got)
			}
			if e := asError(t, err); e.Code != ErrDrilldown {
				t.Errorf("code = %q, want %q", e.Code, ErrDrilldown)
			}
			if got != nil {
				t.Errorf("a single failure must invalidate the whole list, got %v", got)
			}
		})
	}
}
