package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Strategy pulls candidate time strings out of one table cell. Each markup
// revision of the source page that wraps times differently gets its own
// strategy.
type Strategy struct {
	Name       string
	Candidates func(cell *goquery.Selection) []string
}

// Strategies is the default set used by Table. The whole-cell text is always
// among them, so a time outside any wrapper is never lost; the nested ones
// recover times that merge in plain text, as in
// <strong>08:15</strong><strong>12:45</strong>.
var Strategies = []Strategy{
	{Name: "paragraph", Candidates: nestedCandidates("p")},
	{Name: "strong", Candidates: nestedCandidates("strong, b")},
	{Name: "text", Candidates: plainCandidates},
}

// cellTimes returns the union of the valid times every strategy finds, in
// first-seen order.
func cellTimes(cell *goquery.Selection, strategies []Strategy) []Time {
	var times []Time
	seen := make(map[Time]bool)
	for _, s := range strategies {
		for _, c := range s.Candidates(cell) {
			t, ok := ParseTimeToken(c)
			if !ok || seen[t] {
				continue
			}
			seen[t] = true
			times = append(times, t)
		}
	}
	return times
}

func nestedCandidates(selector string) func(*goquery.Selection) []string {
	return func(cell *goquery.Selection) []string {
		var out []string
		cell.Find(selector).Each(func(_ int, s *goquery.Selection) {
			for _, n := range s.Nodes {
				out = append(out, splitTokens(collectText(n))...)
			}
		})
		return out
	}
}

func plainCandidates(cell *goquery.Selection) []string {
	return splitTokens(selectionText(cell))
}

func selectionText(s *goquery.Selection) string {
	parts := make([]string, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if t := collectText(n); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// splitTokens breaks cell text on whitespace and the separators the page
// uses between times.
func splitTokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '/', '|':
			return true
		}
		return unicode.IsSpace(r)
	})
}

// collectText returns the visible text of a subtree. Line breaks and block
// boundaries become spaces; inline elements join their text, so
// <strong>09</strong>:00 reads as 09:00.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Br:
				sb.WriteByte(' ')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			sb.WriteByte(' ')
		}
	}
	f(n)
	return cleanText(sb.String())
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Td, atom.Th, atom.Tr:
		return true
	}
	return false
}

// cleanText drops zero-width characters and collapses whitespace.
func cleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
