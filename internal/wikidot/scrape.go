package wikidot

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// This file holds every markup scrape the client depends on. They are all
// string-level contracts with wikidot's rendered output and will break if
// the platform changes its markup; keeping them together means such a
// change requires one edit.

// loginMismatchMarker is the fixed error text wikidot renders inside
// <h2 class="error"> when credentials are wrong. The substring match is
// the entire contract.
const loginMismatchMarker = "The login and password do not match."

var pageIDRe = regexp.MustCompile(`WIKIREQUEST\.info\.pageId\s*=\s*(\d+)\s*;`)

// scrapeLoginMismatch reports whether a login response body carries the
// credential-mismatch error heading.
func scrapeLoginMismatch(body string) bool {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return false
	}

	var errText strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "h2" && hasClass(n, "error") {
			errText.WriteString(nodeText(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Contains(errText.String(), loginMismatchMarker)
}

// scrapePageID extracts the numeric page id from the WIKIREQUEST bootstrap
// script of a rendered page.
func scrapePageID(body string) (int64, bool) {
	m := pageIDRe.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// scrapeTagInput pulls the space-separated tag list out of the PageTags
// module fragment (the value of input#page-tags-input). A page without
// tags yields "".
func scrapeTagInput(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var value string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "input" && attrValue(n, "id") == "page-tags-input" {
			value = attrValue(n, "value")
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)

	return value
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
