package drilldown

// Error code constants for categorizing errors. All of them map to a
// 400-class response at the transport layer.
const (
	ErrConfiguration = "CONFIGURATION_ERROR" // no base query provided
	ErrDrilldown     = "DRILLDOWN_ERROR"     // bad declared relationship path
	ErrField         = "FIELD_ERROR"         // unknown or disallowed field in fields
	ErrFilter        = "FILTER_ERROR"        // unknown or disallowed field in a filter
	ErrQuery         = "QUERY_ERROR"         // engine rejected a filter path or value
	ErrOrdering      = "ORDERING_ERROR"      // bad order_by field, detected at execution
)

// Error represents a structured error with a code, message, and optional details.
// It is JSON-serializable for use in API responses.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
