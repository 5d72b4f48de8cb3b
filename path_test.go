package drilldown

import "testing"

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"client.profile.first_name", []string{"client", "profile", "first_name"}},
		{"client__profile", []string{"client", "profile"}},
		{"client__profile.email", []string{"client", "profile", "email"}},
		{" client . profile ", []string{"client", "profile"}},
		{"client", []string{"client"}},
		{"", nil},
		{"..", nil},
	}
	for _, tt := range tests {
		got := splitPath(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitPath(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitPath(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestJoinPath(t *testing.T) {
	if got := joinPath("", "client"); got != "client" {
		t.Errorf("joinPath on empty prefix = %q, want client", got)
	}
	if got := joinPath("client", "profile"); got != "client.profile" {
		t.Errorf("joinPath = %q, want client.profile", got)
	}
}

func TestCanonicalPath(t *testing.T) {
	if got := canonicalPath("client__profile__email"); got != "client.profile.email" {
		t.Errorf("canonicalPath = %q, want client.profile.email", got)
	}
}
