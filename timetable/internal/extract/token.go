package extract

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// rolloverHour is the first hour that belongs to the current service day.
// Departures before it are treated as running after midnight.
const rolloverHour = 4

var timeTokenRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Time is one departure time as printed in a timetable cell.
type Time struct {
	Hour   int
	Minute int
}

// String formats the time as HH:MM.
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// sortKey orders times within a service day: 02:30 sorts after 23:00.
func (t Time) sortKey() int {
	h := t.Hour
	if h < rolloverHour {
		h += 24
	}
	return h*60 + t.Minute
}

// ParseTimeToken recognises a strict HH:MM token after trimming. Anything
// else, including out-of-range hours or minutes, is rejected.
func ParseTimeToken(s string) (Time, bool) {
	s = strings.TrimSpace(s)
	if !timeTokenRe.MatchString(s) {
		return Time{}, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return Time{}, false
	}
	return Time{Hour: h, Minute: m}, true
}

// NormaliseColumn removes duplicate times and sorts the rest in service-day
// order.
func NormaliseColumn(times []Time) []Time {
	seen := make(map[Time]bool, len(times))
	out := make([]Time, 0, len(times))
	for _, t := range times {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	slices.SortStableFunc(out, func(a, b Time) int {
		return a.sortKey() - b.sortKey()
	})
	return out
}

// formatColumn renders times prefixed by the column label.
func formatColumn(label string, times []Time) []string {
	out := make([]string, 0, len(times)+1)
	out = append(out, label)
	for _, t := range times {
		out = append(out, t.String())
	}
	return out
}
