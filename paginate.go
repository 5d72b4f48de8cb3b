package drilldown

import "strconv"

// GlobalThrottle is the process-wide cap on result page size. Endpoints may
// lower it with their own throttle, never raise it.
const GlobalThrottle = 2000

// parseIntParam parses a non-negative integer request parameter.
// Invalid or negative text is silently treated as absent (zero).
func parseIntParam(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// clampLimit resolves the effective page size: the requested limit bounded by
// the endpoint throttle (or GlobalThrottle when the endpoint sets none).
// A zero request means "no limit", which still clamps to the throttle.
func clampLimit(requested, throttle int) int {
	if throttle <= 0 || throttle > GlobalThrottle {
		throttle = GlobalThrottle
	}
	if requested <= 0 || requested > throttle {
		return throttle
	}
	return requested
}
