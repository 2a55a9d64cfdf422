// Package timetable turns the rendered bus-timetables page into one schedule
// record per catalog route and keeps the last good result cached.
//
// A pass is: render page → Locate panels → Assemble (extract each panel) →
// stamp and cache. Per-route problems become a "no service" message on that
// route and a Diagnostic; only a render failure fails the pass.
package timetable

import (
	"context"
	"errors"
	"time"
)

// NoServiceMessage is set on routes for which no usable timetable was found.
const NoServiceMessage = "No service available—check back later"

var (
	// ErrNoSchedule means the rendered page held no panel for any catalog route.
	ErrNoSchedule = errors.New("timetable: page has no timetable panels")
	// ErrUnknownRoute is returned by Route for names not in the catalog.
	ErrUnknownRoute = errors.New("timetable: unknown route")
)

// RouteSchedule is the published record for one route. Either the time
// arrays are set or Message is, never both.
type RouteSchedule struct {
	LineID        string   `json:"lineId"`
	HeaderImage   string   `json:"headerImage"`
	OldPort       []string `json:"oldPort,omitempty"`
	NewPort       []string `json:"newPort,omitempty"`
	MidPort       []string `json:"midPort,omitempty"`
	HasMiddleStop bool     `json:"hasMiddleStop"`
	Message       string   `json:"message,omitempty"`
}

// Served reports whether the route has departure times.
func (r RouteSchedule) Served() bool { return r.Message == "" }

// ScheduleSet maps canonical route names to their schedules. A set is built
// once and never modified after it is cached.
type ScheduleSet struct {
	Routes    map[string]RouteSchedule `json:"routes"`
	FetchedAt time.Time                `json:"fetchedAt"`
	PassID    string                   `json:"passId,omitempty"`
}

// Counts returns how many routes have times and how many carry the no
// service message.
func (s ScheduleSet) Counts() (served, noService int) {
	for _, r := range s.Routes {
		if r.Served() {
			served++
		} else {
			noService++
		}
	}
	return served, noService
}

// State says where a View came from.
type State string

const (
	StateFresh State = "fresh" // cached and inside the freshness window
	StateNew   State = "new"   // produced by a pass for this request
	StateStale State = "stale" // the pass failed; last good set returned
)

// View is a schedule set plus how it was obtained.
type View struct {
	Set   ScheduleSet
	State State
	// Err is the pass error when State is StateStale.
	Err error
}

// Renderer produces the rendered page markup.
type Renderer interface {
	Render(ctx context.Context) (string, error)
}

// Clock returns the current time.
type Clock func() time.Time
