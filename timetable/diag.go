package timetable

import (
	"context"
	"log/slog"
	"sync"
)

// DiagnosticKind classifies a non-fatal problem noticed during a pass.
type DiagnosticKind string

const (
	DiagUnknownPanel     DiagnosticKind = "unknown_panel"
	DiagTitleMismatch    DiagnosticKind = "title_mismatch"
	DiagDuplicatePanel   DiagnosticKind = "duplicate_panel"
	DiagMalformedSection DiagnosticKind = "malformed_section"
	DiagColumnMismatch   DiagnosticKind = "column_mismatch"
	DiagAmbiguousColumns DiagnosticKind = "ambiguous_columns"
)

// Diagnostic describes one problem. Route is empty for unknown panels.
type Diagnostic struct {
	Kind       DiagnosticKind
	ExternalID string
	Route      string
	Detail     string
}

// Diagnostics receives problems found while locating and extracting.
type Diagnostics interface {
	Report(Diagnostic)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(Diagnostic)

func (f DiagnosticsFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Diagnostics = DiagnosticsFunc(func(Diagnostic) {})

// LogDiagnostics writes diagnostics to logger. Unknown panels and title
// mismatches are expected page noise and go to Debug.
func LogDiagnostics(logger *slog.Logger) Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return DiagnosticsFunc(func(d Diagnostic) {
		level := slog.LevelWarn
		switch d.Kind {
		case DiagUnknownPanel, DiagTitleMismatch:
			level = slog.LevelDebug
		}
		logger.Log(context.Background(), level, "timetable: "+string(d.Kind),
			"external_id", d.ExternalID, "route", d.Route, "detail", d.Detail)
	})
}

// Tee reports to every non-nil sink.
func Tee(sinks ...Diagnostics) Diagnostics {
	return DiagnosticsFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}

// Recorder keeps diagnostics in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	r.items = append(r.items, d)
	r.mu.Unlock()
}

// All returns a copy of everything recorded.
func (r *Recorder) All() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.items))
	copy(out, r.items)
	return out
}

// Kinds returns the recorded kinds in report order.
func (r *Recorder) Kinds() []DiagnosticKind {
	all := r.All()
	out := make([]DiagnosticKind, len(all))
	for i, d := range all {
		out[i] = d.Kind
	}
	return out
}
