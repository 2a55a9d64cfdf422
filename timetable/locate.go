package timetable

import (
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/mykonosbus/catalog"
)

const (
	panelSelector = "div.vc_tta-panel"
	titleSelector = "span.vc_tta-title-text"
)

// Panel is one accordion section of the page matched to a catalog route.
type Panel struct {
	ExternalID string
	Route      catalog.Route
	// Title is the accordion title, lower-cased and whitespace-collapsed.
	Title string
	// Markup is the sanitised inner HTML of the panel.
	Markup string
}

// panelPolicy keeps table structure and the inline wrappers times are
// printed in. Scripts, styles and attributes other than class/span counts
// are removed.
var panelPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "span", "p", "strong", "b", "em", "i", "br",
		"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td")
	p.AllowAttrs("class").OnElements("table", "div", "span")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	return p
}()

// Locate parses page and returns its catalog panels in document order.
// Panels without an id or with an id unknown to the catalog are reported as
// DiagUnknownPanel and skipped. The returned sequence may be ranged over any
// number of times; markup is sanitised on each walk.
func Locate(page string, cat *catalog.Catalog, diag Diagnostics) (iter.Seq[Panel], error) {
	if diag == nil {
		diag = Discard
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("timetable: parse page: %w", err)
	}

	type match struct {
		sel   *goquery.Selection
		route catalog.Route
		title string
	}
	var matches []match
	doc.Find(panelSelector).Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("id", ""))
		title := normaliseTitle(sel.Find(titleSelector).First().Text())
		route, ok := cat.ByExternalID(id)
		if !ok {
			detail := "id not in catalog"
			if id == "" {
				detail = "panel has no id"
			}
			if title != "" {
				detail += fmt.Sprintf(" (title %q)", title)
			}
			diag.Report(Diagnostic{Kind: DiagUnknownPanel, ExternalID: id, Detail: detail})
			return
		}
		if title != "" && title != normaliseTitle(route.CanonicalName) {
			diag.Report(Diagnostic{
				Kind:       DiagTitleMismatch,
				ExternalID: id,
				Route:      route.CanonicalName,
				Detail:     fmt.Sprintf("page title %q", title),
			})
		}
		matches = append(matches, match{sel: sel, route: route, title: title})
	})

	return func(yield func(Panel) bool) {
		for _, m := range matches {
			inner, err := m.sel.Html()
			if err != nil {
				diag.Report(Diagnostic{
					Kind:       DiagMalformedSection,
					ExternalID: m.route.ExternalID,
					Route:      m.route.CanonicalName,
					Detail:     "render panel: " + err.Error(),
				})
				continue
			}
			p := Panel{
				ExternalID: m.route.ExternalID,
				Route:      m.route,
				Title:      m.title,
				Markup:     panelPolicy.Sanitize(inner),
			}
			if !yield(p) {
				return
			}
		}
	}, nil
}

func normaliseTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
