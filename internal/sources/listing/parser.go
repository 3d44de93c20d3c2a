// Package listing turns the rendered table of a ListPages query into
// reservation records.
package listing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/wikidot-tools/reservebot/internal/domain"
)

// RowTemplate is the module_body the listing queries are issued with: six
// cells per row, in this exact order.
const RowTemplate = "|| %%created_by%% || %%fullname%% || %%form_raw{branch}%% || %%form_raw{page}%% || %%created_at%% || %%title%% ||"

// Column positions in the rendered table.
const (
	colUsername = iota
	colPageKey
	colBranch
	colOriginalLink
	colReservedAt
	colTitle
	columnCount
)

var timeClassRe = regexp.MustCompile(`time_(\d+)`)

// Parse extracts reservation records from a listing fragment. The parse is
// tolerant by design: missing cells contribute empty strings, a missing
// time_<unix> class token yields the zero timestamp, and malformed rows
// never raise. Rows without data cells (the header) are skipped.
func Parse(fragment string, lc domain.Lifecycle) []domain.ReservationRecord {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var records []domain.ReservationRecord
	for _, row := range findAll(doc, "tr") {
		cells := findAll(row, "td")
		if len(cells) == 0 {
			continue
		}
		records = append(records, parseRow(cells, lc))
	}
	return records
}

func parseRow(cells []*html.Node, lc domain.Lifecycle) domain.ReservationRecord {
	cell := func(i int) *html.Node {
		if i < len(cells) {
			return cells[i]
		}
		return nil
	}

	pageKey := cellText(cell(colPageKey))

	return domain.ReservationRecord{
		Username:     cellText(cell(colUsername)),
		PageKey:      pageKey,
		Branch:       cellText(cell(colBranch)),
		OriginalLink: cellText(cell(colOriginalLink)),
		ReservedAt:   cellTimestamp(cell(colReservedAt)),
		Title:        cellText(cell(colTitle)),
		Lifecycle:    lc,
		UnixName:     domain.StripLifecyclePrefix(pageKey),
	}
}

// cellTimestamp digs the creation time out of the odate span's CSS class,
// which carries a time_<unixSeconds> token. No token means the zero
// timestamp, a tolerated degenerate case.
func cellTimestamp(cell *html.Node) time.Time {
	if cell == nil {
		return time.Unix(0, 0).UTC()
	}
	for _, span := range findAll(cell, "span") {
		class := attrValue(span, "class")
		if !strings.Contains(class, "odate") {
			continue
		}
		if m := timeClassRe.FindStringSubmatch(class); m != nil {
			secs, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				return time.Unix(secs, 0).UTC()
			}
		}
	}
	// Fall back to scanning the whole cell in case the listing theme nests
	// the span differently.
	if m := timeClassRe.FindStringSubmatch(allClasses(cell)); m != nil {
		if secs, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	}
	return time.Unix(0, 0).UTC()
}

func cellText(n *html.Node) string {
	if n == nil {
		return ""
	}
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
	return strings.TrimSpace(b.String())
}

// findAll collects matching elements in the strict subtree of root,
// without descending into matches (tr and td do not nest in this listing).
func findAll(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func allClasses(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			b.WriteString(attrValue(n, "class"))
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
