package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/relux-works/drilldown"
)

// join is one LEFT JOIN in the statement, keyed by its relation path.
type join struct {
	path     string
	field    string // relation field name on the parent entity
	parent   string // parent relation path, "" for the root
	alias    string
	table    Table
	entity   *drilldown.EntityType
	selected bool   // join-fetch: its columns are part of the select list
	onClause string // rendered "table AS alias ON ..." join condition
}

// Query accumulates one statement. Build errors are deferred and surfaced
// from Execute or Count, matching engines that only reject a bad order
// column when the statement runs.
type Query struct {
	ds       *Datastore
	entity   *drilldown.EntityType
	table    Table
	joins    []*join
	byPath   map[string]*join
	batches  []string
	where    []sq.Sqlizer
	order    []string
	ordCols  []selectColumn
	offset   int
	limit    int
	distinct bool
	queries  int
	err      error
}

var _ drilldown.QueryBuilder = (*Query)(nil)
var _ drilldown.QueryCounter = (*Query)(nil)

func newQuery(ds *Datastore, entity *drilldown.EntityType) *Query {
	q := &Query{
		ds:     ds,
		entity: entity,
		byPath: make(map[string]*join),
	}
	q.table, q.err = ds.mapping.table(entity.Name())
	return q
}

// WithJoins implements drilldown.QueryBuilder.
func (q *Query) WithJoins(paths []string) drilldown.QueryBuilder {
	for _, path := range paths {
		if _, err := q.ensurePath(path, true); err != nil && q.err == nil {
			q.err = err
		}
	}
	return q
}

// WithBatchFetch implements drilldown.QueryBuilder.
func (q *Query) WithBatchFetch(paths []string) drilldown.QueryBuilder {
	q.batches = append(q.batches, paths...)
	return q
}

// Filter implements drilldown.QueryBuilder. Path resolution and operator
// translation errors are reported immediately.
func (q *Query) Filter(filters []drilldown.Filter) (drilldown.QueryBuilder, error) {
	for _, f := range filters {
		col, err := q.resolveColumn(f.Path)
		if err != nil {
			return nil, err
		}
		pred, err := q.predicate(col, f.Op, f.Value)
		if err != nil {
			return nil, err
		}
		q.where = append(q.where, pred)
	}
	return q, nil
}

// OrderBy implements drilldown.QueryBuilder. A bad path is remembered and
// surfaces when the statement executes.
func (q *Query) OrderBy(specs []drilldown.OrderSpec) drilldown.QueryBuilder {
	for _, spec := range specs {
		col, err := q.resolveColumn(spec.Path)
		if err != nil {
			if q.err == nil {
				q.err = err
			}
			return q
		}
		dir := "ASC"
		if spec.Desc {
			dir = "DESC"
		}
		q.order = append(q.order, col+" "+dir)

		segs := strings.Split(spec.Path, ".")
		q.ordCols = append(q.ordCols, selectColumn{
			expr:  col,
			path:  strings.Join(segs[:len(segs)-1], "."),
			field: segs[len(segs)-1],
		})
	}
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

// Count implements drilldown.QueryBuilder: COUNT(DISTINCT id) over the
// filtered, unsliced statement.
func (q *Query) Count(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.Count")
	defer span.End()

	if q.err != nil {
		return 0, q.err
	}
	sb := q.buildCount()

	q.queries++
	var total int
	if err := sb.RunWith(q.ds.db).QueryRowContext(ctx).Scan(&total); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return total, nil
}

// Execute implements drilldown.QueryBuilder: one base round trip including
// all join-fetched relations, then one keyed round trip per batch path.
func (q *Query) Execute(ctx context.Context) ([]drilldown.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlstore.Execute")
	defer span.End()

	if q.err != nil {
		return nil, q.err
	}

	cols := q.selectColumns()
	sb := q.buildSelect(cols)

	q.queries++
	rows, err := sb.RunWith(q.ds.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("base query: %w", err)
	}
	defer rows.Close()

	records, err := q.scanRows(rows, cols)
	if err != nil {
		return nil, err
	}

	for _, path := range sortByDepth(dedup(q.batches)) {
		if err := q.batchFetch(ctx, records, path); err != nil {
			return nil, err
		}
	}

	q.ds.logger.Debug("sql drilldown query",
		zap.String("entity", q.entity.Name()),
		zap.Int("rows", len(records)),
		zap.Int("round_trips", q.queries),
	)
	return records, nil
}

const baseAlias = "t0"

// buildSelect renders the base statement: select list, joins, predicates,
// ordering, and the slice window.
func (q *Query) buildSelect(cols []selectColumn) sq.SelectBuilder {
	refs := make([]string, len(cols))
	for i, c := range cols {
		refs[i] = c.expr
	}
	sb := q.ds.stbl.Select(refs...).From(q.table.Name + " AS " + baseAlias)
	if q.distinct {
		sb = sb.Distinct()
	}
	sb = q.applyJoins(sb)
	for _, pred := range q.where {
		sb = sb.Where(pred)
	}
	if len(q.order) > 0 {
		sb = sb.OrderBy(q.order...)
	}
	if q.offset > 0 {
		sb = sb.Offset(uint64(q.offset))
	}
	if q.limit > 0 {
		sb = sb.Limit(uint64(q.limit))
	}
	return sb
}

// buildCount renders the count statement over the filtered, unsliced query.
func (q *Query) buildCount() sq.SelectBuilder {
	sb := q.ds.stbl.
		Select(fmt.Sprintf("COUNT(DISTINCT %s.%s)", baseAlias, q.table.Columns["id"])).
		From(q.table.Name + " AS " + baseAlias)
	sb = q.applyJoins(sb)
	for _, pred := range q.where {
		sb = sb.Where(pred)
	}
	return sb
}

// ensurePath guarantees LEFT JOINs for every hop of a relation path and
// returns the join for the final hop. selected marks every hop's columns for
// the select list (join-fetch); where-only joins leave it false.
func (q *Query) ensurePath(path string, selected bool) (*join, error) {
	segs := strings.Split(path, ".")
	var (
		prefix       string
		parentAlias  = baseAlias
		parentTable  = q.table
		parentEntity = q.entity
		current      *join
	)
	for _, name := range segs {
		prefix = joinPathPrefix(prefix, name)
		if existing, ok := q.byPath[prefix]; ok {
			existing.selected = existing.selected || selected
			current = existing
		} else {
			kind := parentEntity.FieldKind(name)
			related := parentEntity.RelatedType(name)
			if related == nil {
				return nil, fmt.Errorf("unknown relation %q on %s", name, parentEntity.Name())
			}
			table, err := q.ds.mapping.table(related.Name())
			if err != nil {
				return nil, err
			}
			j := &join{
				path:     prefix,
				field:    name,
				parent:   parentOf(prefix),
				alias:    fmt.Sprintf("t%d", len(q.joins)+1),
				table:    table,
				entity:   related,
				selected: selected,
			}
			switch kind {
			case drilldown.KindToOne:
				// fine
			case drilldown.KindToMany:
				// Joining through a to-many hop multiplies rows.
				q.distinct = true
			default:
				return nil, fmt.Errorf("%q is not a relation field", prefix)
			}
			q.joins = append(q.joins, j)
			q.byPath[prefix] = j
			j.onClause = q.joinCondition(kind, parentAlias, parentTable, name, j)
			current = j
		}
		parentAlias = current.alias
		parentTable = current.table
		parentEntity = current.entity
	}
	return current, nil
}

func (q *Query) joinCondition(kind drilldown.FieldKind, parentAlias string, parentTable Table, field string, j *join) string {
	if kind == drilldown.KindToOne {
		fk := parentTable.FK[field]
		return fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
			j.table.Name, j.alias, parentAlias, fk, j.alias, j.table.Columns["id"])
	}
	ref := parentTable.Ref[field]
	return fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
		j.table.Name, j.alias, j.alias, ref, parentAlias, parentTable.Columns["id"])
}

func (q *Query) applyJoins(sb sq.SelectBuilder) sq.SelectBuilder {
	for _, j := range q.joins {
		sb = sb.LeftJoin(j.onClause)
	}
	return sb
}

// resolveColumn turns a canonical dotted path into an "alias.column"
// reference, adding where-only joins for every relation hop.
func (q *Query) resolveColumn(path string) (string, error) {
	segs := strings.Split(path, ".")
	terminal := segs[len(segs)-1]

	alias := baseAlias
	table := q.table
	entity := q.entity
	if len(segs) > 1 {
		j, err := q.ensurePath(strings.Join(segs[:len(segs)-1], "."), false)
		if err != nil {
			return "", err
		}
		alias, table, entity = j.alias, j.table, j.entity
	}

	switch entity.FieldKind(terminal) {
	case drilldown.KindScalar, drilldown.KindToOne:
		col, ok := table.column(terminal)
		if !ok {
			return "", fmt.Errorf("no column mapped for %q on %s", terminal, entity.Name())
		}
		return alias + "." + col, nil
	case drilldown.KindToMany:
		// Equality against a to-many relation compares the related ids.
		j, err := q.ensurePath(path, false)
		if err != nil {
			return "", err
		}
		return j.alias + "." + j.table.Columns["id"], nil
	default:
		return "", fmt.Errorf("unknown field %q on %s", terminal, entity.Name())
	}
}

// predicate translates one compiled filter into a squirrel expression.
func (q *Query) predicate(col, op string, value any) (sq.Sqlizer, error) {
	switch op {
	case "", "exact":
		return sq.Eq{col: value}, nil
	case "iexact":
		return sq.Expr("LOWER("+col+") = LOWER(?)", likeString(value)), nil
	case "gt":
		return sq.Gt{col: value}, nil
	case "gte":
		return sq.GtOrEq{col: value}, nil
	case "lt":
		return sq.Lt{col: value}, nil
	case "lte":
		return sq.LtOrEq{col: value}, nil
	case "in":
		return sq.Eq{col: value}, nil
	case "isnull":
		if want, _ := value.(bool); want {
			return sq.Eq{col: nil}, nil
		}
		return sq.NotEq{col: nil}, nil
	case "contains":
		return sq.Like{col: "%" + likeString(value) + "%"}, nil
	case "icontains":
		return q.ilike(col, "%"+likeString(value)+"%"), nil
	case "startswith":
		return sq.Like{col: likeString(value) + "%"}, nil
	case "istartswith":
		return q.ilike(col, likeString(value)+"%"), nil
	case "endswith":
		return sq.Like{col: "%" + likeString(value)}, nil
	case "iendswith":
		return q.ilike(col, "%"+likeString(value)), nil
	default:
		return nil, fmt.Errorf("unsupported filter operator %q", op)
	}
}

// ilike is case-insensitive LIKE: native on postgres, LOWER-folded elsewhere.
func (q *Query) ilike(col, pattern string) sq.Sqlizer {
	if q.ds.dollar {
		return sq.ILike{col: pattern}
	}
	return sq.Expr("LOWER("+col+") LIKE LOWER(?)", pattern)
}

func likeString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// selectColumn pairs a select-list expression with where its value lands in
// the assembled record graph.
type selectColumn struct {
	expr  string // "alias.col"
	path  string // relation path, "" for the root entity
	field string
}

func (q *Query) selectColumns() []selectColumn {
	cols := columnsFor("", baseAlias, q.table)
	for _, j := range q.joins {
		if !j.selected {
			continue
		}
		cols = append(cols, columnsFor(j.path, j.alias, j.table)...)
	}
	// SELECT DISTINCT requires every ORDER BY column in the select list.
	if q.distinct {
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c.expr] = true
		}
		for _, oc := range q.ordCols {
			if !have[oc.expr] {
				have[oc.expr] = true
				cols = append(cols, oc)
			}
		}
	}
	return cols
}

func columnsFor(path, alias string, table Table) []selectColumn {
	fields := table.selectFields()
	names := make([]string, 0, len(fields))
	for field := range fields {
		if field != "id" {
			names = append(names, field)
		}
	}
	sort.Strings(names)

	// id first so nil-detection reads naturally in scans.
	cols := make([]selectColumn, 0, len(fields))
	cols = append(cols, selectColumn{expr: alias + "." + table.Columns["id"], path: path, field: "id"})
	for _, field := range names {
		cols = append(cols, selectColumn{expr: alias + "." + fields[field], path: path, field: field})
	}
	return cols
}

// scanRows assembles flat scan values into nested record graphs, one per row.
func (q *Query) scanRows(rows rowScanner, cols []selectColumn) ([]drilldown.Record, error) {
	records := make([]drilldown.Record, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		byPath := map[string]drilldown.Record{"": make(drilldown.Record)}
		for i, c := range cols {
			rec, ok := byPath[c.path]
			if !ok {
				rec = make(drilldown.Record)
				byPath[c.path] = rec
			}
			rec[c.field] = normalizeValue(vals[i])
		}

		root := byPath[""]
		// Attach joined records to their parents; creation order guarantees
		// parents appear before children.
		for _, j := range q.joins {
			if !j.selected {
				continue
			}
			child := byPath[j.path]
			parent, ok := byPath[j.parent]
			if !ok || parent == nil {
				continue
			}
			if child == nil || child["id"] == nil {
				parent[j.field] = nil
				continue
			}
			parent[j.field] = child
		}
		records = append(records, root)
	}
	return records, rows.Err()
}

// rowScanner is the subset of *sql.Rows the scanner consumes.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// batchFetch loads a to-many relation for every record sitting at the path's
// parent, with a single keyed query.
func (q *Query) batchFetch(ctx context.Context, roots []drilldown.Record, path string) error {
	segs := strings.Split(path, ".")
	field := segs[len(segs)-1]

	parentEntity := q.entity
	parentTable := q.table
	for _, name := range segs[:len(segs)-1] {
		parentEntity = parentEntity.RelatedType(name)
		if parentEntity == nil {
			return fmt.Errorf("unknown relation path %q", path)
		}
		var err error
		parentTable, err = q.ds.mapping.table(parentEntity.Name())
		if err != nil {
			return err
		}
	}

	related := parentEntity.RelatedType(field)
	if related == nil {
		return fmt.Errorf("unknown relation %q on %s", field, parentEntity.Name())
	}
	childTable, err := q.ds.mapping.table(related.Name())
	if err != nil {
		return err
	}
	refCol, ok := parentTable.Ref[field]
	if !ok {
		return fmt.Errorf("no reverse key mapped for %s.%s", parentEntity.Name(), field)
	}

	parents := collectAt(roots, segs[:len(segs)-1])
	ids := make([]any, 0, len(parents))
	seen := make(map[string]bool, len(parents))
	for _, p := range parents {
		id := p["id"]
		key := fmt.Sprint(id)
		if id == nil || seen[key] {
			continue
		}
		seen[key] = true
		ids = append(ids, id)
	}

	// Initialize to empty so parents without children still serialize as [].
	for _, p := range parents {
		p[field] = []drilldown.Record{}
	}
	if len(ids) == 0 {
		return nil
	}

	cols := columnsFor("", "c", childTable)
	refs := make([]string, len(cols)+1)
	for i, c := range cols {
		refs[i] = c.expr
	}
	refs[len(cols)] = "c." + refCol

	q.queries++
	rows, err := q.ds.stbl.
		Select(refs...).
		From(childTable.Name+" AS c").
		Where(sq.Eq{"c." + refCol: ids}).
		OrderBy("c."+childTable.Columns["id"]).
		RunWith(q.ds.db).
		QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("batch query for %s: %w", path, err)
	}
	defer rows.Close()

	children := make(map[string][]drilldown.Record)
	for rows.Next() {
		vals := make([]any, len(refs))
		ptrs := make([]any, len(refs))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan batch row: %w", err)
		}
		rec := make(drilldown.Record, len(cols))
		for i, c := range cols {
			rec[c.field] = normalizeValue(vals[i])
		}
		fk := fmt.Sprint(normalizeValue(vals[len(cols)]))
		children[fk] = append(children[fk], rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range parents {
		if kids, ok := children[fmt.Sprint(p["id"])]; ok {
			p[field] = kids
		}
	}
	return nil
}

// collectAt walks the resolved record graph and returns every record at the
// given relation path.
func collectAt(records []drilldown.Record, segs []string) []drilldown.Record {
	if len(segs) == 0 {
		return records
	}
	var next []drilldown.Record
	for _, rec := range records {
		switch v := rec[segs[0]].(type) {
		case drilldown.Record:
			next = append(next, v)
		case []drilldown.Record:
			next = append(next, v...)
		}
	}
	return collectAt(next, segs[1:])
}

// normalizeValue converts driver byte slices to strings so records compare
// and serialize cleanly.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func joinPathPrefix(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

func parentOf(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i]
	}
	return ""
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
