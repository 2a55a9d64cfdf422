package timetable

import (
	"fmt"
	"iter"

	"github.com/hazyhaar/mykonosbus/catalog"
	"github.com/hazyhaar/mykonosbus/timetable/internal/extract"
)

// Extraction is the usable content of one panel. Each array starts with its
// column header.
type Extraction struct {
	OldPort       []string
	MidPort       []string
	NewPort       []string
	HasMiddleStop bool
}

// ExtractFunc extracts one panel. A nil result means the panel has no usable
// timetable; problems go to diag.
type ExtractFunc func(p Panel, diag Diagnostics) *Extraction

// ExtractTable is the default ExtractFunc.
func ExtractTable(p Panel, diag Diagnostics) *Extraction {
	res, issues := extract.Table(p.Markup, extract.Options{Stops: p.Route.Stops()})
	for _, is := range issues {
		diag.Report(Diagnostic{
			Kind:       issueKind(is.Kind),
			ExternalID: p.ExternalID,
			Route:      p.Route.CanonicalName,
			Detail:     is.Detail,
		})
	}
	if res == nil {
		return nil
	}
	return &Extraction{
		OldPort:       res.Origin,
		MidPort:       res.Middle,
		NewPort:       res.Destination,
		HasMiddleStop: res.HasMiddleStop,
	}
}

func issueKind(k extract.IssueKind) DiagnosticKind {
	switch k {
	case extract.IssueColumnMismatch:
		return DiagColumnMismatch
	case extract.IssueAmbiguousColumns:
		return DiagAmbiguousColumns
	default:
		return DiagMalformedSection
	}
}

// Assemble builds one RouteSchedule per catalog route from panels. Routes
// with no panel or no usable table get NoServiceMessage. When several panels
// map to one route the first usable one wins and the others are reported as
// DiagDuplicatePanel. Assemble reads no clock; FetchedAt is left zero.
func Assemble(cat *catalog.Catalog, panels iter.Seq[Panel], fn ExtractFunc, diag Diagnostics) ScheduleSet {
	if fn == nil {
		fn = ExtractTable
	}
	if diag == nil {
		diag = Discard
	}

	set := ScheduleSet{Routes: make(map[string]RouteSchedule, cat.Len())}
	for _, r := range cat.Routes() {
		set.Routes[r.CanonicalName] = noService(cat, r)
	}
	if panels == nil {
		return set
	}

	seen := make(map[string]int)
	done := make(map[string]bool)
	for p := range panels {
		name := p.Route.CanonicalName
		if _, ok := set.Routes[name]; !ok {
			diag.Report(Diagnostic{Kind: DiagUnknownPanel, ExternalID: p.ExternalID, Detail: fmt.Sprintf("route %q not in catalog", name)})
			continue
		}
		seen[name]++
		if seen[name] > 1 {
			diag.Report(Diagnostic{
				Kind:       DiagDuplicatePanel,
				ExternalID: p.ExternalID,
				Route:      name,
				Detail:     fmt.Sprintf("panel %d for this route", seen[name]),
			})
		}
		if done[name] {
			continue
		}

		ex := fn(p, diag)
		if ex == nil {
			continue
		}
		done[name] = true
		rs := RouteSchedule{
			LineID:        p.Route.ExternalID,
			HeaderImage:   cat.HeaderImage(p.Route),
			OldPort:       ex.OldPort,
			NewPort:       ex.NewPort,
			HasMiddleStop: ex.HasMiddleStop,
		}
		if ex.HasMiddleStop {
			rs.MidPort = ex.MidPort
		}
		set.Routes[name] = rs
	}
	return set
}

func noService(cat *catalog.Catalog, r catalog.Route) RouteSchedule {
	return RouteSchedule{
		LineID:      r.ExternalID,
		HeaderImage: cat.HeaderImage(r),
		Message:     NoServiceMessage,
	}
}
