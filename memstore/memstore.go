// Package memstore implements the drilldown.QueryBuilder contract over
// in-memory record tables. It is the reference engine: tests use it to check
// compilation and round-trip behavior, and the server can run on it without
// an external database.
//
// Row convention: a to-one relation field holds the related identifier, a
// to-many relation field holds a slice of related identifiers. Relation
// resolution replaces those identifiers with the related records.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/relux-works/drilldown"
)

// Store holds record tables keyed by entity name. Loading happens at startup;
// queries take snapshots under a read lock, so concurrent reads are safe.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]drilldown.Record
	index  map[string]map[string]drilldown.Record // entity -> id key -> record
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables: make(map[string][]drilldown.Record),
		index:  make(map[string]map[string]drilldown.Record),
	}
}

// Load appends rows to the named entity's table. Each row must carry an "id".
func (s *Store) Load(entity string, rows ...drilldown.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[entity] = append(s.tables[entity], rows...)
	idx := s.index[entity]
	if idx == nil {
		idx = make(map[string]drilldown.Record)
		s.index[entity] = idx
	}
	for _, row := range rows {
		idx[idKey(row["id"])] = row
	}
}

// Query starts a query over the entity's table.
func (s *Store) Query(entity *drilldown.EntityType) drilldown.QueryBuilder {
	return &Query{store: s, entity: entity}
}

// lookup finds a record by identifier. The second return reports existence.
func (s *Store) lookup(entity string, id any) (drilldown.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.index[entity][idKey(id)]
	return rec, ok
}

func (s *Store) snapshot(entity string) []drilldown.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]drilldown.Record, len(s.tables[entity]))
	for i, row := range s.tables[entity] {
		rows[i] = cloneRecord(row)
	}
	return rows
}

// idKey normalizes identifiers so int(3) and float64(3) hit the same entry.
func idKey(id any) string {
	switch v := id.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func cloneRecord(rec drilldown.Record) drilldown.Record {
	out := make(drilldown.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Query accumulates hints, filters, ordering, and the slice window, then
// executes against the store. It tracks its storage round trips: one for the
// base query, one per distinct batch path, one per count.
type Query struct {
	store   *Store
	entity  *drilldown.EntityType
	joins   []string
	batches []string
	filters []drilldown.Filter
	order   []drilldown.OrderSpec
	offset  int
	limit   int
	queries int
}

var _ drilldown.QueryBuilder = (*Query)(nil)
var _ drilldown.QueryCounter = (*Query)(nil)

// WithJoins implements drilldown.QueryBuilder. Join resolution happens inside
// the base round trip, so it never adds to the query count.
func (q *Query) WithJoins(paths []string) drilldown.QueryBuilder {
	q.joins = append(q.joins, paths...)
	return q
}

// WithBatchFetch implements drilldown.QueryBuilder.
func (q *Query) WithBatchFetch(paths []string) drilldown.QueryBuilder {
	q.batches = append(q.batches, paths...)
	return q
}

// Filter implements drilldown.QueryBuilder. Unknown operators are rejected
// here, before execution.
func (q *Query) Filter(filters []drilldown.Filter) (drilldown.QueryBuilder, error) {
	for _, f := range filters {
		if !knownOperator(f.Op) {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	q.filters = append(q.filters, filters...)
	return q, nil
}

// OrderBy implements drilldown.QueryBuilder.
func (q *Query) OrderBy(specs []drilldown.OrderSpec) drilldown.QueryBuilder {
	q.order = append(q.order, specs...)
	return q
}

// Slice implements drilldown.QueryBuilder.
func (q *Query) Slice(offset, limit int) drilldown.QueryBuilder {
	q.offset = offset
	q.limit = limit
	return q
}

// QueryCount implements drilldown.QueryCounter.
func (q *Query) QueryCount() int {
	return q.queries
}

// Count implements drilldown.QueryBuilder. It runs the filters against a
// fresh snapshot, ignoring the slice window.
func (q *Query) Count(ctx context.Context) (int, error) {
	q.queries++
	rows, err := q.matching()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Execute implements drilldown.QueryBuilder.
func (q *Query) Execute(ctx context.Context) ([]drilldown.Record, error) {
	q.queries++
	rows, err := q.matching()
	if err != nil {
		return nil, err
	}
	if err := q.sortRows(rows); err != nil {
		return nil, err
	}
	rows = applyWindow(rows, q.offset, q.limit)

	// Joins resolve from the already-loaded snapshot; batch paths each cost
	// one more round trip.
	for _, path := range sortByDepth(q.joins) {
		if err := q.resolvePath(rows, path); err != nil {
			return nil, err
		}
	}
	for _, path := range sortByDepth(dedup(q.batches)) {
		q.queries++
		if err := q.resolvePath(rows, path); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (q *Query) matching() ([]drilldown.Record, error) {
	rows := q.store.snapshot(q.entity.Name())
	if len(q.filters) == 0 {
		return rows, nil
	}
	out := rows[:0]
	for _, row := range rows {
		ok, err := q.matches(row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (q *Query) matches(row drilldown.Record) (bool, error) {
	for _, f := range q.filters {
		values := q.pathValues(q.entity, row, drilldownSegments(f.Path))
		ok, err := anyMatch(values, f.Op, f.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// pathValues walks a dotted path through the record graph, resolving relation
// identifiers through the store. To-many hops fan out; the result is the flat
// list of terminal values. A missing to-one target contributes a nil value so
// isnull filters observe it.
func (q *Query) pathValues(entity *drilldown.EntityType, row drilldown.Record, segs []string) []any {
	if row == nil || len(segs) == 0 {
		return nil
	}
	name := segs[0]
	value := row[name]
	kind := entity.FieldKind(name)

	if len(segs) == 1 {
		if !kind.IsRelation() {
			return []any{value}
		}
		// Terminal relation segment: compare against related identifiers.
		if kind == drilldown.KindToOne {
			return []any{relationID(value)}
		}
		var out []any
		for _, id := range idSlice(value) {
			out = append(out, relationID(id))
		}
		return out
	}

	related := entity.RelatedType(name)
	if related == nil {
		return nil
	}
	if kind == drilldown.KindToOne {
		rec, ok := q.resolveOne(related.Name(), value)
		if !ok {
			return []any{nil}
		}
		return q.pathValues(related, rec, segs[1:])
	}
	var out []any
	for _, id := range idSlice(value) {
		rec, ok := q.resolveOne(related.Name(), id)
		if !ok {
			continue
		}
		out = append(out, q.pathValues(related, rec, segs[1:])...)
	}
	return out
}

// resolveOne returns the related record for a to-one value, which may already
// be resolved or still an identifier.
func (q *Query) resolveOne(entity string, value any) (drilldown.Record, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case drilldown.Record:
		return v, true
	case map[string]any:
		return v, true
	default:
		return q.store.lookup(entity, v)
	}
}

// resolvePath replaces relation identifiers with related records along path.
// Intermediate hops must already be resolved, which holds because the
// compiled path lists are closed under prefixes and processed in depth order.
func (q *Query) resolvePath(rows []drilldown.Record, path string) error {
	return q.attach(q.entity, rows, drilldownSegments(path))
}

func (q *Query) attach(entity *drilldown.EntityType, rows []drilldown.Record, segs []string) error {
	name := segs[0]
	kind := entity.FieldKind(name)
	related := entity.RelatedType(name)
	if related == nil {
		return fmt.Errorf("unknown relation %q on %s", name, entity.Name())
	}

	for _, row := range rows {
		if len(segs) > 1 {
			// Descend into the already-resolved hop.
			switch v := row[name].(type) {
			case drilldown.Record:
				if err := q.attach(related, []drilldown.Record{v}, segs[1:]); err != nil {
					return err
				}
			case []drilldown.Record:
				if err := q.attach(related, v, segs[1:]); err != nil {
					return err
				}
			}
			continue
		}

		if kind == drilldown.KindToOne {
			if _, done := row[name].(drilldown.Record); done {
				continue
			}
			if rec, ok := q.store.lookup(related.Name(), row[name]); ok {
				row[name] = cloneRecord(rec)
			} else {
				row[name] = nil
			}
			continue
		}

		if _, done := row[name].([]drilldown.Record); done {
			continue
		}
		ids := idSlice(row[name])
		children := make([]drilldown.Record, 0, len(ids))
		for _, id := range ids {
			if rec, ok := q.store.lookup(related.Name(), id); ok {
				children = append(children, cloneRecord(rec))
			}
		}
		row[name] = children
	}
	return nil
}

// sortRows applies the order specs. A path whose first hop is not a field of
// the entity graph fails, mirroring engines that reject bad order columns at
// execution time.
func (q *Query) sortRows(rows []drilldown.Record) error {
	if len(q.order) == 0 {
		return nil
	}
	for _, spec := range q.order {
		if err := validateOrderPath(q.entity, spec.Path); err != nil {
			return err
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, spec := range q.order {
			a := firstValue(q.pathValues(q.entity, rows[i], drilldownSegments(spec.Path)))
			b := firstValue(q.pathValues(q.entity, rows[j], drilldownSegments(spec.Path)))
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if spec.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func validateOrderPath(entity *drilldown.EntityType, path string) error {
	current := entity
	segs := drilldownSegments(path)
	for i, name := range segs {
		if !current.FieldExists(name) {
			return fmt.Errorf("cannot order by unknown field %q", name)
		}
		if i == len(segs)-1 {
			return nil
		}
		if !current.FieldKind(name).IsRelation() {
			return fmt.Errorf("cannot order by %q: %q is not a relation", path, name)
		}
		current = current.RelatedType(name)
	}
	return nil
}

func applyWindow(rows []drilldown.Record, offset, limit int) []drilldown.Record {
	if offset >= len(rows) {
		return []drilldown.Record{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func drilldownSegments(path string) []string {
	return strings.Split(path, ".")
}

func sortByDepth(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(out[i], ".") < strings.Count(out[j], ".")
	})
	return out
}

func dedup(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// relationID extracts the identifier from a relation value that may or may
// not be resolved.
func relationID(value any) any {
	switch v := value.(type) {
	case drilldown.Record:
		return v["id"]
	case map[string]any:
		return v["id"]
	default:
		return value
	}
}

// idSlice normalizes a to-many identifier field to a flat []any.
func idSlice(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []int:
		out := make([]any, len(v))
		for i, id := range v {
			out[i] = id
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, id := range v {
			out[i] = id
		}
		return out
	case []drilldown.Record:
		out := make([]any, len(v))
		for i, rec := range v {
			out[i] = rec
		}
		return out
	default:
		return []any{v}
	}
}

func firstValue(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
