// Package marker recognises the textual conventions that memos use to carry
// goal, check-in, schedule and task semantics, and derives statistics from
// the completion records that back-reference them.
//
// Every function in this package is pure: matchers and extractors never fail,
// they report a miss with a zero value and false. Builders that cannot find
// the marker they are asked to rewrite return apperr.ErrMarkerNotFound.
package marker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/starford/memolog/internal/models"
)

var (
	goalRe       = regexp.MustCompile(`(?m)^-\[0\]\s+.+\s+\(\d+/\d+\)\r?$`)
	goalFieldsRe = regexp.MustCompile(`(?m)^-\[0\]\s+(.+?)\s+\((\d+)/(\d+)\)\r?$`)
	goalUpdateRe = regexp.MustCompile(`(?m)^(-\[0\]\s+.+?\s+\()(\d+)(/\d+\))\r?$`)

	checkinTitleRe = regexp.MustCompile(`-\[\*\]\s*(.+)`)

	dateTimeRe       = regexp.MustCompile(`\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}(?::\d{2})?`)
	scheduleMarkerRe = regexp.MustCompile(`-?\{\}\s*`)

	taskNoteRe = regexp.MustCompile(`(?m)^[-*]\s*\[([ xX])\]\s*.+$`)
	taskLineRe = regexp.MustCompile(`^[-*]\s*\[([ xX])\]\s*(.+)$`)
)

const (
	checkinMarker  = "-[*]"
	scheduleMarker = "{}"
)

// IsGoal reports whether the note carries a goal marker line
// "-[0] <title> (<current>/<target>)".
func IsGoal(n models.Note) bool {
	return goalRe.MatchString(strings.TrimSpace(n.Content))
}

// IsCheckin reports whether any line of the note contains "-[*]".
func IsCheckin(n models.Note) bool {
	return strings.Contains(n.Content, checkinMarker)
}

// IsSchedule reports whether the note carries a "{}" / "-{}" marker together
// with a date-time token.
func IsSchedule(n models.Note) bool {
	return strings.Contains(n.Content, scheduleMarker) && dateTimeRe.MatchString(n.Content)
}

// IsTaskNote reports whether any line of the note is a checkbox task.
func IsTaskNote(n models.Note) bool {
	return taskNoteRe.MatchString(n.Content)
}

// leadingSpace returns the number of bytes strings.TrimSpace would remove from
// the front of s.
func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}
