package rsi

import (
	"strings"

	"golang.org/x/net/html"
)

// OrgInfo is the parsed organization membership of one citizen page.
// Main is empty when no main organization could be extracted; Affiliates
// preserves first-seen order with literal duplicates removed.
type OrgInfo struct {
	Main       string
	Affiliates []string
}

// mainOrgStrategy extracts a candidate main-org name from the document root.
// Strategies are tried in order; the first non-empty result wins.
type mainOrgStrategy func(*html.Node) string

// affiliateStrategy extracts candidate affiliate names; the first strategy
// yielding any match wins.
type affiliateStrategy func(*html.Node) []string

var mainOrgStrategies = []mainOrgStrategy{
	// Current layout: <div class="box-content org main"> ... <a class="value">Name</a>
	func(root *html.Node) string {
		block := findFirst(root, func(n *html.Node) bool { return hasClass(n, "org", "main") })
		if block == nil {
			return ""
		}
		return innerText(findFirst(block, func(n *html.Node) bool { return hasClass(n, "value") }))
	},
	// Older layout used a dedicated main-org wrapper.
	func(root *html.Node) string {
		block := findFirst(root, func(n *html.Node) bool { return hasClass(n, "main-org") })
		if block == nil {
			return ""
		}
		if v := findFirst(block, func(n *html.Node) bool { return hasClass(n, "value") }); v != nil {
			return innerText(v)
		}
		return innerText(block)
	},
	// Last resort: first org link inside the main block, name from the anchor text.
	func(root *html.Node) string {
		block := findFirst(root, func(n *html.Node) bool { return hasClass(n, "main") })
		if block == nil {
			return ""
		}
		a := findFirst(block, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "a" &&
				strings.HasPrefix(attrVal(n, "href"), "/orgs/")
		})
		return innerText(a)
	},
}

var affiliateStrategies = []affiliateStrategy{
	// Current layout: one <div class="box-content org affiliation"> per affiliate.
	func(root *html.Node) []string {
		blocks := findAll(root, func(n *html.Node) bool { return hasClass(n, "org", "affiliation") })
		var names []string
		for _, b := range blocks {
			names = append(names, innerText(findFirst(b, func(n *html.Node) bool { return hasClass(n, "value") })))
		}
		return names
	},
	// Older layout: a single affiliates container with org links.
	func(root *html.Node) []string {
		container := findFirst(root, func(n *html.Node) bool { return hasClass(n, "affiliation") })
		if container == nil {
			return nil
		}
		anchors := findAll(container, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "a" &&
				strings.HasPrefix(attrVal(n, "href"), "/orgs/")
		})
		var names []string
		for _, a := range anchors {
			names = append(names, innerText(a))
		}
		return names
	},
}

// ParseOrgs extracts main and affiliate organization names from a citizen's
// organizations page. The input may be empty, malformed, or missing the
// expected structure entirely; in every such case the result is simply empty.
// All names are whitespace-collapsed and lower-cased.
func ParseOrgs(raw string) OrgInfo {
	var info OrgInfo
	root := parseMarkup(raw)
	if root == nil {
		return info
	}

	for _, strat := range mainOrgStrategies {
		if name := normalizeOrgName(strat(root)); name != "" {
			info.Main = name
			break
		}
	}

	for _, strat := range affiliateStrategies {
		matches := strat(root)
		if len(matches) == 0 {
			continue
		}
		// Dedupe literal duplicates, first occurrence wins. A name equal to the
		// main org is kept: the site reports them as distinct memberships.
		seen := make(map[string]bool)
		for _, m := range matches {
			name := normalizeOrgName(m)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			info.Affiliates = append(info.Affiliates, name)
		}
		if len(info.Affiliates) > 0 {
			break
		}
	}
	return info
}
