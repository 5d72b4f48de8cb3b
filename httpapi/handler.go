// Package httpapi adapts a drilldown.Endpoint to an HTTP GET handler.
// Every query parameter maps straight onto the endpoint's request surface:
// fields, order_by, limit, offset, and filters.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/relux-works/drilldown"
	"github.com/relux-works/drilldown/logger"
)

// Response headers.
const (
	HeaderTotalCount = "X-Total-Count"   // total match count before limit/offset
	HeaderQueryCount = "X-Query-Count"   // storage round trips, debug mode only
	HeaderError      = "X-Query-Error"   // first validation failure
	HeaderWarning    = "X-Query-Warning" // filters skipped in lenient mode
)

// Handler serves one endpoint over HTTP GET.
type Handler struct {
	endpoint *drilldown.Endpoint
	log      logger.Logger
	debug    bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger. Defaults to a noop logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// WithDebug enables the query-count response header.
func WithDebug() Option {
	return func(h *Handler) {
		h.debug = true
	}
}

// NewHandler creates an HTTP handler for the endpoint.
func NewHandler(ep *drilldown.Endpoint, opts ...Option) *Handler {
	h := &Handler{
		endpoint: ep,
		log:      logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	params := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	res, err := h.endpoint.Get(r.Context(), params)
	if err != nil {
		h.log.Warn("drilldown request rejected",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		w.Header().Set(HeaderError, err.Error())
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderTotalCount, strconv.Itoa(res.TotalCount))
	if len(res.Warnings) > 0 {
		w.Header().Set(HeaderWarning, strings.Join(res.Warnings, "; "))
	}
	if h.debug {
		w.Header().Set(HeaderQueryCount, strconv.Itoa(res.Queries))
	}

	if err := json.NewEncoder(w).Encode(res.Records); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}
