package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sufficient reports whether a page already carries timetable panels with
// at least one table, i.e. whether it is usable without running scripts.
// A page builder shell that injects panels client-side fails this check.
func Sufficient(page string) bool {
	panels, tables := countMarkers(page)
	return panels > 0 && tables > 0
}

// countMarkers streams the document and counts accordion panels and tables.
func countMarkers(page string) (panels, tables int) {
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return panels, tables
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			switch atom.Lookup(name) {
			case atom.Table:
				tables++
			case atom.Div:
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "class" && hasClass(string(val), "vc_tta-panel") {
						panels++
						break
					}
				}
			}
		}
	}
}

func hasClass(attr, class string) bool {
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true
		}
	}
	return false
}
