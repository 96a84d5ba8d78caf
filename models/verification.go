package models

import (
	"strings"
	"time"
)

// MembershipStatus describes how a user relates to the target organization
// or, on a snapshot, whether the user belongs to any visible organization.
type MembershipStatus string

const (
	StatusMain      MembershipStatus = "main"
	StatusAffiliate MembershipStatus = "affiliate"
	StatusNonMember MembershipStatus = "non_member"
)

// VerificationSnapshot is the point-in-time verification result for one user.
// Status is always derived from the org lists via DeriveStatus, never set by hand.
type VerificationSnapshot struct {
	UserID         string           `json:"user_id"`
	Handle         string           `json:"handle"`
	Status         MembershipStatus `json:"status"`
	MainOrgs       []string         `json:"main_orgs"`
	AffiliateOrgs  []string         `json:"affiliate_orgs"`
	DisplayMoniker string           `json:"display_moniker,omitempty"`
	CheckedAt      time.Time        `json:"checked_at"`
	// Error is set when the fetch was degraded or failed but a best-effort
	// snapshot is still returned. Snapshots with a non-empty Error are never cached.
	Error string `json:"error,omitempty"`
}

// IsRedacted reports whether an org name is the site's hidden-membership
// placeholder. Redacted entries never count toward membership status.
func IsRedacted(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	return n == "" || n == "redacted" || n == "[redacted]"
}

// DeriveStatus computes the membership status from the stored org lists:
// main if any non-redacted main org exists, else affiliate if any non-redacted
// affiliate exists, else non_member.
func DeriveStatus(mainOrgs, affiliateOrgs []string) MembershipStatus {
	for _, org := range mainOrgs {
		if !IsRedacted(org) {
			return StatusMain
		}
	}
	for _, org := range affiliateOrgs {
		if !IsRedacted(org) {
			return StatusAffiliate
		}
	}
	return StatusNonMember
}

// Derive sets the snapshot's Status field from its org lists.
func (s *VerificationSnapshot) Derive() {
	s.Status = DeriveStatus(s.MainOrgs, s.AffiliateOrgs)
}
