package rsi

import "testing"

func TestResolveMembership(t *testing.T) {
	cases := []struct {
		name   string
		orgs   OrgInfo
		target string
		want   int
	}{
		{
			name:   "main match is case-insensitive",
			orgs:   OrgInfo{Main: "test squadron"},
			target: "TEST Squadron",
			want:   MembershipMain,
		},
		{
			name:   "affiliate match",
			orgs:   OrgInfo{Main: "other org", Affiliates: []string{"test squadron"}},
			target: "Test Squadron",
			want:   MembershipAffiliate,
		},
		{
			name:   "no substring matching",
			orgs:   OrgInfo{Main: "test squadron elite"},
			target: "test squadron",
			want:   MembershipNone,
		},
		{
			name:   "main wins over affiliate",
			orgs:   OrgInfo{Main: "test squadron", Affiliates: []string{"test squadron"}},
			target: "test squadron",
			want:   MembershipMain,
		},
		{
			name:   "empty org set",
			orgs:   OrgInfo{},
			target: "test squadron",
			want:   MembershipNone,
		},
		{
			name:   "empty target never matches",
			orgs:   OrgInfo{Main: ""},
			target: "",
			want:   MembershipNone,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ResolveMembership(c.orgs, c.target); got != c.want {
				t.Fatalf("ResolveMembership(%+v, %q) = %d, want %d", c.orgs, c.target, got, c.want)
			}
		})
	}
}
