package rsi

import (
	"strings"

	"golang.org/x/net/html"
)

// parseMarkup parses raw page text into a node tree. x/net/html is lenient:
// malformed or truncated input still yields a tree, so extraction never fails hard.
func parseMarkup(raw string) *html.Node {
	node, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	return node
}

// hasClass reports whether the element node carries every one of the given classes.
func hasClass(n *html.Node, classes ...string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	var attr string
	for _, a := range n.Attr {
		if a.Key == "class" {
			attr = a.Val
			break
		}
	}
	if attr == "" {
		return false
	}
	have := make(map[string]bool)
	for _, c := range strings.Fields(attr) {
		have[c] = true
	}
	for _, c := range classes {
		if !have[c] {
			return false
		}
	}
	return true
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findAll walks the tree depth-first and returns every node matching pred,
// in document order.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	if root == nil {
		return out
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	all := findAll(root, pred)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// innerText joins all text content below the node with single spaces and
// collapses runs of whitespace.
func innerText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// normalizeOrgName collapses whitespace and lower-cases an extracted org name
// so comparisons and storage are uniform.
func normalizeOrgName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
