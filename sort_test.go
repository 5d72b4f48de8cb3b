package drilldown

import (
	"reflect"
	"testing"
)

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		raw  string
		want []OrderSpec
	}{
		{"", nil},
		{"number", []OrderSpec{{Path: "number"}}},
		{"-total", []OrderSpec{{Path: "total", Desc: true}}},
		{"number,-total", []OrderSpec{{Path: "number"}, {Path: "total", Desc: true}}},
		{" number , -total ", []OrderSpec{{Path: "number"}, {Path: "total", Desc: true}}},
		{"client__name", []OrderSpec{{Path: "client.name"}}},
		{"-client.profile.last_name", []OrderSpec{{Path: "client.profile.last_name", Desc: true}}},
		{",,", nil},
		{"-", nil},
	}
	for _, tt := range tests {
		got := parseOrderBy(tt.raw)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseOrderBy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
