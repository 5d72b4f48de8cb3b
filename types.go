package drilldown

import "context"

// Record is a loaded entity instance: a mapping from field name to value.
// Scalar fields hold their raw values. A resolved to-one relation holds a
// nested Record (or nil); an unresolved one holds the related identifier.
// A resolved to-many relation holds a []Record; an unresolved one holds a
// slice of related identifiers.
type Record map[string]any

// Filter is one compiled predicate from a request filter parameter.
type Filter struct {
	Path  string // canonical dotted path ending at the target field
	Op    string // operator suffix; empty means equality
	Value any    // string, bool, or []string for the "in" operator
}

// OrderSpec is one order_by entry.
type OrderSpec struct {
	Path string // canonical dotted path
	Desc bool
}

// QueryBuilder abstracts the underlying storage/query engine. Implementations
// build up a query from relation hints, filters, ordering, and slicing, then
// execute it. The final builder is consumed by Execute or Count.
type QueryBuilder interface {
	// WithJoins marks to-one relation paths for resolution within the same
	// round trip as the base query.
	WithJoins(paths []string) QueryBuilder

	// WithBatchFetch marks to-many relation paths for resolution via a
	// separate keyed query per distinct path.
	WithBatchFetch(paths []string) QueryBuilder

	// Filter adds the compiled predicates as a conjunction. It returns an
	// error if the engine rejects a field path or operator.
	Filter(filters []Filter) (QueryBuilder, error)

	// OrderBy applies ordering paths verbatim. Bad paths surface from Execute.
	OrderBy(specs []OrderSpec) QueryBuilder

	// Slice restricts the result window. offset >= 0; limit > 0 means at most
	// limit rows, limit == 0 means unbounded.
	Slice(offset, limit int) QueryBuilder

	// Count returns the number of matching rows, ignoring any slice window.
	Count(ctx context.Context) (int, error)

	// Execute runs the query and returns the matching rows with all join and
	// batch relations resolved.
	Execute(ctx context.Context) ([]Record, error)
}

// QueryCounter is optionally implemented by engines that track storage round
// trips. The HTTP layer reports the count in debug mode.
type QueryCounter interface {
	QueryCount() int
}

// BaseQueryFunc supplies the base query for an endpoint. Returning nil is a
// configuration error surfaced to the caller.
type BaseQueryFunc func(ctx context.Context) QueryBuilder
