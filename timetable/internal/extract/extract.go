// Package extract turns the markup of one timetable panel into per-stop
// departure columns.
//
// The pipeline: panel HTML → first data table → header labels → per-cell
// time tokens (via Strategies) → dedupe/sort per column → validity check →
// column reconciliation → header-prefixed arrays.
//
// Failures are reported as Issues alongside a nil Result; nothing in this
// package returns an error.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IssueKind classifies something the extractor noticed about a table.
type IssueKind string

const (
	IssueNoTable          IssueKind = "no_table"
	IssueNoTimes          IssueKind = "no_times"
	IssueColumnMismatch   IssueKind = "column_mismatch"
	IssueAmbiguousColumns IssueKind = "ambiguous_columns"
)

// Issue is a diagnostic produced while extracting one table.
type Issue struct {
	Kind   IssueKind
	Detail string
}

func (i Issue) String() string { return string(i.Kind) + ": " + i.Detail }

// Result is a successfully extracted table. Each column starts with its
// header label followed by HH:MM times in service-day order. Middle is nil
// for two-stop tables.
type Result struct {
	Origin        []string
	Middle        []string
	Destination   []string
	Headers       [3]string
	HasMiddleStop bool
}

// Options controls extraction behaviour.
type Options struct {
	// Stops are the route's stop names in travel order. For three-stop
	// tables they are matched against header labels to pick columns.
	Stops []string

	// Strategies overrides the cell tokenisers whose results are merged.
	// Defaults to Strategies.
	Strategies []Strategy
}

func (o *Options) defaults() {
	if len(o.Strategies) == 0 {
		o.Strategies = Strategies
	}
}

// Table extracts the first data table found in markup. A nil Result means no
// usable timetable; the issues say why.
func Table(markup string, opts Options) (*Result, []Issue) {
	opts.defaults()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, []Issue{{Kind: IssueNoTable, Detail: "parse: " + err.Error()}}
	}

	rows := findRows(doc.Selection)
	if len(rows) == 0 {
		return nil, []Issue{{Kind: IssueNoTable, Detail: "no table with rows"}}
	}
	return fromRows(rows, opts)
}

// findRows picks the data table: table.aligncenter first, otherwise the first
// table with at least one row. Rows of nested tables are excluded.
func findRows(root *goquery.Selection) []*goquery.Selection {
	for _, sel := range []string{"table.aligncenter", "table"} {
		var rows []*goquery.Selection
		root.Find(sel).EachWithBreak(func(_ int, table *goquery.Selection) bool {
			rows = tableRows(table)
			return len(rows) == 0
		})
		if len(rows) > 0 {
			return rows
		}
	}
	return nil
}

func tableRows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").IsSelection(table) {
			rows = append(rows, tr)
		}
	})
	return rows
}

func fromRows(rows []*goquery.Selection, opts Options) (*Result, []Issue) {
	var issues []Issue

	first := rows[0].ChildrenFiltered("th, td")
	width := first.Length()
	hasMiddle := width >= 3

	// A first row that already holds times is data, not a header.
	labels := make([]string, width)
	firstIsData := false
	first.Each(func(i int, cell *goquery.Selection) {
		if len(cellTimes(cell, opts.Strategies)) > 0 {
			firstIsData = true
		}
		labels[i] = selectionText(cell)
	})
	data := rows[1:]
	if firstIsData {
		data = rows
		for i := range labels {
			labels[i] = ""
		}
	}
	for i := range labels {
		if labels[i] == "" {
			labels[i] = fmt.Sprintf("Column %d", i)
		}
	}

	columns := make([][]Time, width)
	for _, row := range data {
		row.ChildrenFiltered("th, td").Each(func(i int, cell *goquery.Selection) {
			if i >= width {
				return
			}
			columns[i] = append(columns[i], cellTimes(cell, opts.Strategies)...)
		})
	}
	for i := range columns {
		columns[i] = NormaliseColumn(columns[i])
	}

	origin, middle, dest := 0, -1, 1
	if hasMiddle {
		var issue *Issue
		origin, middle, dest, issue = mapColumns(labels, opts.Stops)
		if issue != nil {
			issues = append(issues, *issue)
		}
	} else if width < 2 {
		return nil, append(issues, Issue{Kind: IssueNoTimes, Detail: fmt.Sprintf("table has %d column(s)", width)})
	}

	o, d := columns[origin], columns[dest]
	var m []Time
	if hasMiddle {
		m = columns[middle]
	}
	if len(o) == 0 || len(d) == 0 || (hasMiddle && len(m) == 0) {
		return nil, append(issues, Issue{
			Kind:   IssueNoTimes,
			Detail: fmt.Sprintf("origin=%d middle=%d destination=%d times", len(o), len(m), len(d)),
		})
	}

	switch {
	case !hasMiddle && len(o) != len(d):
		n := min(len(o), len(d))
		issues = append(issues, Issue{
			Kind:   IssueColumnMismatch,
			Detail: fmt.Sprintf("origin=%d destination=%d, truncated to %d", len(o), len(d), n),
		})
		o, d = o[:n], d[:n]
	case hasMiddle && (len(o) != len(d) || len(o) != len(m)):
		issues = append(issues, Issue{
			Kind:   IssueColumnMismatch,
			Detail: fmt.Sprintf("origin=%d middle=%d destination=%d", len(o), len(m), len(d)),
		})
	}

	res := &Result{
		Origin:        formatColumn(labels[origin], o),
		Destination:   formatColumn(labels[dest], d),
		HasMiddleStop: hasMiddle,
	}
	res.Headers[0] = labels[origin]
	res.Headers[2] = labels[dest]
	if hasMiddle {
		res.Middle = formatColumn(labels[middle], m)
		res.Headers[1] = labels[middle]
	}
	return res, issues
}
