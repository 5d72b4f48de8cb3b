package drilldown

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/relux-works/drilldown/logger"
)

// builtinIgnore are request parameter names that are never treated as
// filters.
var builtinIgnore = map[string]struct{}{
	"fields":   {},
	"order_by": {},
	"limit":    {},
	"offset":   {},
	"format":   {},
}

// Endpoint is the per-route configuration of a drill-down query API: the root
// entity, the declared relationship allowlist, field visibility, and the base
// query provider. Endpoints are built once at startup and are safe for
// concurrent use; each Get call is handled to completion by one logical
// worker with no internal parallelism.
type Endpoint struct {
	entity   *EntityType
	base     BaseQueryFunc
	allowed  pathSet
	ddErr    error
	hidden   pathSet
	ignore   map[string]struct{}
	throttle int
	lenient  bool
	log      logger.Logger
}

// EndpointOption configures an Endpoint during construction.
type EndpointOption func(*Endpoint)

// WithDrilldowns declares the relationship paths requests may traverse.
// Paths may be written with dots or double underscores; every intermediate
// path is registered implicitly. A bad declaration is remembered and surfaced
// on every request, matching the treatment of request-time errors.
func WithDrilldowns(paths ...string) EndpointOption {
	return func(ep *Endpoint) {
		canonical, err := ValidateDrilldowns(ep.entity, paths)
		if err != nil {
			ep.ddErr = err
			return
		}
		ep.allowed = newPathSet(canonical)
	}
}

// WithHide excludes the dotted field paths from both filtering and output,
// regardless of request content.
func WithHide(paths ...string) EndpointOption {
	return func(ep *Endpoint) {
		ep.hidden = newPathSet(paths)
	}
}

// WithIgnore excludes the parameter names from filter consideration entirely.
func WithIgnore(names ...string) EndpointOption {
	return func(ep *Endpoint) {
		for _, n := range names {
			ep.ignore[n] = struct{}{}
		}
	}
}

// WithThrottle lowers the endpoint's maximum page size below GlobalThrottle.
func WithThrottle(n int) EndpointOption {
	return func(ep *Endpoint) {
		ep.throttle = n
	}
}

// WithLenient downgrades unknown filter fields from request errors to
// warnings; the offending filter is skipped rather than failing the request.
func WithLenient() EndpointOption {
	return func(ep *Endpoint) {
		ep.lenient = true
	}
}

// WithLogger sets the endpoint's logger. Defaults to a noop logger.
func WithLogger(l logger.Logger) EndpointOption {
	return func(ep *Endpoint) {
		ep.log = l
	}
}

// NewEndpoint creates an endpoint over entity whose requests run against the
// base query. Drilldown validation happens here, once, and is cached for the
// endpoint's lifetime.
func NewEndpoint(entity *EntityType, base BaseQueryFunc, opts ...EndpointOption) *Endpoint {
	ep := &Endpoint{
		entity:  entity,
		base:    base,
		allowed: make(pathSet),
		hidden:  make(pathSet),
		ignore:  make(map[string]struct{}),
		log:     logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(ep)
	}
	return ep
}

// Result is the outcome of one successful Get: the pruned output records plus
// pagination metadata.
type Result struct {
	Records    []map[string]any
	TotalCount int
	Queries    int // storage round trips, when the engine reports them
	Warnings   []string
}

// Get handles one request. params holds the raw query parameters, one value
// per key: fields, order_by, limit, offset, and any number of filters. The
// first validation failure short-circuits the remaining pipeline stages; all
// returned errors are 400-class *Error values.
func (ep *Endpoint) Get(ctx context.Context, params map[string]string) (*Result, error) {
	if ep.base == nil {
		return nil, &Error{Code: ErrConfiguration, Message: "API error: base query missing or invalid"}
	}
	if ep.ddErr != nil {
		return nil, ep.ddErr
	}

	fields := splitList(params["fields"])
	tree, joins, batches, err := compileFields(ep.entity, fields, ep.allowed, ep.hidden)
	if err != nil {
		return nil, err
	}

	chain, warnings, err := compileFilters(ep.entity, ep.extractFilters(params), ep.allowed, ep.lenient)
	if err != nil {
		return nil, err
	}

	qb := ep.base(ctx)
	if qb == nil {
		return nil, &Error{Code: ErrConfiguration, Message: "API error: base query missing or invalid"}
	}
	if len(joins) > 0 {
		qb = qb.WithJoins(joins)
	}
	if len(batches) > 0 {
		qb = qb.WithBatchFetch(batches)
	}

	qb, err = qb.Filter(chain)
	if err != nil {
		return nil, &Error{
			Code:    ErrQuery,
			Message: "bad filter parameter in query",
			Details: map[string]any{"cause": err.Error()},
		}
	}
	countQuery := qb // before ordering and slicing, for the total count

	order := parseOrderBy(params["order_by"])
	if len(order) > 0 {
		qb = qb.OrderBy(order)
	}

	offset := parseIntParam(params["offset"])
	limit := clampLimit(parseIntParam(params["limit"]), ep.throttle)
	qb = qb.Slice(offset, limit)

	rows, err := qb.Execute(ctx)
	if err != nil {
		if orderingCause(err, order) {
			return nil, &Error{
				Code:    ErrOrdering,
				Message: "error: may be bad field name in order_by",
				Details: map[string]any{"cause": err.Error()},
			}
		}
		return nil, &Error{
			Code:    ErrQuery,
			Message: "bad filter value in query",
			Details: map[string]any{"cause": err.Error()},
		}
	}

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		records = append(records, pruneRecord(ep.entity, row, tree))
	}

	// A separate count query is only worth a round trip when the page may be
	// truncated: either an offset was supplied or the page filled the limit.
	total := len(rows)
	if offset > 0 || (len(rows) > 0 && len(rows) == limit) {
		total, err = countQuery.Count(ctx)
		if err != nil {
			return nil, &Error{
				Code:    ErrQuery,
				Message: "bad filter value in query",
				Details: map[string]any{"cause": err.Error()},
			}
		}
	}

	res := &Result{
		Records:    records,
		TotalCount: total,
		Warnings:   warnings,
	}
	if qc, ok := qb.(QueryCounter); ok {
		res.Queries = qc.QueryCount()
	}

	ep.log.Debug("drilldown query executed",
		zap.String("entity", ep.entity.Name()),
		zap.Int("rows", len(rows)),
		zap.Int("total", total),
		zap.Int("joins", len(joins)),
		zap.Int("batches", len(batches)),
		zap.Int("filters", len(chain)),
	)
	return res, nil
}

// orderingCause reports whether an execution failure looks like a rejected
// order column: some requested order path, or one of its segments, appears in
// the engine's message. Execution failures on an ordered query that name no
// order column stay attributed to the filters.
func orderingCause(err error, order []OrderSpec) bool {
	if len(order) == 0 {
		return false
	}
	msg := err.Error()
	for _, spec := range order {
		for _, seg := range splitPath(spec.Path) {
			if strings.Contains(msg, seg) {
				return true
			}
		}
	}
	return false
}

// extractFilters collects the request parameters that act as filters,
// dropping builtin parameter names, the endpoint's ignore list, and hidden
// field paths. The key is split before the operator suffix so that e.g.
// "total__lt" is matched against "total".
func (ep *Endpoint) extractFilters(params map[string]string) map[string]string {
	filters := make(map[string]string)
	for key, value := range params {
		head, _ := splitOperator(key)
		if _, ok := builtinIgnore[head]; ok {
			continue
		}
		if _, ok := ep.ignore[head]; ok {
			continue
		}
		if ep.hidden.has(canonicalPath(head)) {
			continue
		}
		filters[key] = value
	}
	return filters
}

// splitList splits a comma-separated parameter into trimmed non-empty parts.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Entity returns the endpoint's root entity type.
func (ep *Endpoint) Entity() *EntityType {
	return ep.entity
}

// String implements fmt.Stringer for logging.
func (ep *Endpoint) String() string {
	return fmt.Sprintf("drilldown endpoint for %s", ep.entity.Name())
}
