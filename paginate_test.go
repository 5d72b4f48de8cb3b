package drilldown

import "testing"

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 0},
		{"0", 0},
		{"25", 25},
		{"-5", 0},
		{"abc", 0},
		{"2.5", 0},
		{"2000", 2000},
	}
	for _, tt := range tests {
		if got := parseIntParam(tt.value); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		throttle  int
		want      int
	}{
		{"no limit no throttle", 0, 0, GlobalThrottle},
		{"limit within throttle", 10, 100, 10},
		{"limit above throttle", 500, 100, 100},
		{"limit at throttle", 100, 100, 100},
		{"no limit with throttle", 0, 50, 50},
		{"throttle above global cap", 10000, 5000, GlobalThrottle},
		{"limit above global cap", 9999, 0, GlobalThrottle},
		{"negative limit", -1, 100, 100},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.requested, tt.throttle); got != tt.want {
			t.Errorf("%s: clampLimit(%d, %d) = %d, want %d",
				tt.name, tt.requested, tt.throttle, got, tt.want)
		}
	}
}
