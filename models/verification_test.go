package models

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name       string
		main       []string
		affiliates []string
		want       MembershipStatus
	}{
		{"visible main", []string{"test squadron"}, nil, StatusMain},
		{"main wins over affiliates", []string{"test squadron"}, []string{"other org"}, StatusMain},
		{"affiliate only", nil, []string{"other org"}, StatusAffiliate},
		{"no orgs", nil, nil, StatusNonMember},
		{"redacted main falls through to affiliate", []string{"redacted"}, []string{"other org"}, StatusAffiliate},
		{"all redacted", []string{"[redacted]"}, []string{"redacted", ""}, StatusNonMember},
		{"redacted main among visible", []string{"redacted", "real org"}, nil, StatusMain},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DeriveStatus(c.main, c.affiliates); got != c.want {
				t.Fatalf("DeriveStatus(%v, %v) = %q, want %q", c.main, c.affiliates, got, c.want)
			}
		})
	}
}

func TestIsRedacted(t *testing.T) {
	for _, name := range []string{"", "  ", "redacted", "REDACTED", "[Redacted]"} {
		if !IsRedacted(name) {
			t.Errorf("IsRedacted(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"test squadron", "redacted org"} {
		if IsRedacted(name) {
			t.Errorf("IsRedacted(%q) = true, want false", name)
		}
	}
}
