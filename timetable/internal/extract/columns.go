package extract

import (
	"fmt"
	"regexp"
	"strings"
)

var parenRe = regexp.MustCompile(`\([^)]*\)`)

// mapColumns decides which columns of a three-stop table hold origin, middle
// and destination. The header row wins when every stop matches exactly one
// label; otherwise columns are taken positionally (0, 1, last) and the
// guess is flagged.
func mapColumns(labels, stops []string) (origin, middle, dest int, issue *Issue) {
	last := len(labels) - 1
	origin, middle, dest = 0, 1, last

	if len(stops) == 3 {
		idx := make([]int, 3)
		matched := 0
		used := make(map[int]bool)
		for s, stop := range stops {
			idx[s] = -1
			for c, label := range labels {
				if used[c] || !labelMatches(label, stop) {
					continue
				}
				idx[s] = c
				used[c] = true
				matched++
				break
			}
		}
		if matched == 3 {
			return idx[0], idx[1], idx[2], nil
		}
		if matched > 0 {
			return origin, middle, dest, &Issue{
				Kind:   IssueAmbiguousColumns,
				Detail: fmt.Sprintf("header %q matches %d of stops %q, using positions 0/1/%d", labels, matched, stops, last),
			}
		}
	}

	if len(labels) > 3 {
		return origin, middle, dest, &Issue{
			Kind:   IssueAmbiguousColumns,
			Detail: fmt.Sprintf("%d columns, using positions 0/1/%d", len(labels), last),
		}
	}
	return origin, middle, dest, nil
}

// labelMatches reports whether a header label names the stop. Parenthesised
// qualifiers such as "(mykonos town)" are ignored on both sides.
func labelMatches(label, stop string) bool {
	l, s := normaliseName(label), normaliseName(stop)
	if l == "" || s == "" {
		return false
	}
	return strings.Contains(l, s) || strings.Contains(s, l)
}

func normaliseName(s string) string {
	s = parenRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}
