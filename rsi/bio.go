package rsi

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var bioStrategies = []func(*html.Node) string{
	// Current layout: <div class="entry bio"> ... <div class="value">text</div>
	func(root *html.Node) string {
		block := findFirst(root, func(n *html.Node) bool { return hasClass(n, "entry", "bio") })
		if block == nil {
			return ""
		}
		return innerText(findFirst(block, func(n *html.Node) bool { return hasClass(n, "value") }))
	},
	// Fallback: any bio block, value child optional.
	func(root *html.Node) string {
		block := findFirst(root, func(n *html.Node) bool { return hasClass(n, "bio") })
		if block == nil {
			return ""
		}
		if v := findFirst(block, func(n *html.Node) bool { return hasClass(n, "value") }); v != nil {
			return innerText(v)
		}
		return innerText(block)
	},
}

// ExtractBio pulls the free-text biography from a citizen profile page.
// Returns ok=false when the input is empty, malformed, or carries no bio.
func ExtractBio(raw string) (string, bool) {
	root := parseMarkup(raw)
	if root == nil {
		return "", false
	}
	for _, strat := range bioStrategies {
		if text := strat(root); text != "" {
			return text, true
		}
	}
	return "", false
}

var monikerStrategies = []func(*html.Node) string{
	// The moniker sits in an info entry labelled "Community Moniker".
	func(root *html.Node) string {
		for _, entry := range findAll(root, func(n *html.Node) bool { return hasClass(n, "entry") }) {
			label := findFirst(entry, func(n *html.Node) bool {
				return n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "label")
			})
			if label == nil || !strings.Contains(strings.ToLower(innerText(label)), "moniker") {
				continue
			}
			return innerText(findFirst(entry, func(n *html.Node) bool { return hasClass(n, "value") }))
		}
		return ""
	},
	func(root *html.Node) string {
		return innerText(findFirst(root, func(n *html.Node) bool { return hasClass(n, "moniker") }))
	},
}

// ExtractMoniker pulls the community moniker from a citizen profile page.
// Extraction failure is non-fatal to callers; they simply leave the field absent.
func ExtractMoniker(raw string) string {
	root := parseMarkup(raw)
	if root == nil {
		return ""
	}
	for _, strat := range monikerStrategies {
		if m := strat(root); m != "" {
			return m
		}
	}
	return ""
}

// ExtractHandle pulls the site's canonical casing of the handle from a
// citizen profile page. Returns "" when the entry cannot be found; callers
// then keep the casing they were given.
func ExtractHandle(raw string) string {
	root := parseMarkup(raw)
	if root == nil {
		return ""
	}
	for _, entry := range findAll(root, func(n *html.Node) bool { return hasClass(n, "entry") }) {
		label := findFirst(entry, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "label")
		})
		if label == nil || !strings.Contains(strings.ToLower(innerText(label)), "handle") {
			continue
		}
		return innerText(findFirst(entry, func(n *html.Node) bool { return hasClass(n, "value") }))
	}
	return ""
}

var digitRun = regexp.MustCompile(`[0-9]+`)

// TokenMatches reports whether the candidate token appears in the bio as a
// standalone 4-digit number. The candidate is zero-padded to 4 digits first,
// so "42", "042" and "0042" are the same token. Any maximal run of exactly
// 4 digits in the bio counts; when a bio contains several standalone 4-digit
// numbers, matching any of them is accepted.
func TokenMatches(bio, candidate string) bool {
	token := strings.TrimSpace(candidate)
	if token == "" || len(token) > 4 {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	token = strings.Repeat("0", 4-len(token)) + token

	for _, run := range digitRun.FindAllString(bio, -1) {
		if len(run) == 4 && run == token {
			return true
		}
	}
	return false
}
