package rsi

import "strings"

// Membership classification of a parsed org set against the target org.
const (
	MembershipNone      = 0
	MembershipMain      = 1
	MembershipAffiliate = 2
)

// ResolveMembership classifies parsed orgs against the target organization
// name. Comparison is case-insensitive and exact: no substring or partial
// matching. The main org is checked first and wins even if the target also
// appears among the affiliates.
func ResolveMembership(orgs OrgInfo, targetOrg string) int {
	target := strings.ToLower(strings.Join(strings.Fields(targetOrg), " "))
	if target == "" {
		return MembershipNone
	}
	if orgs.Main == target {
		return MembershipMain
	}
	for _, aff := range orgs.Affiliates {
		if aff == target {
			return MembershipAffiliate
		}
	}
	return MembershipNone
}
