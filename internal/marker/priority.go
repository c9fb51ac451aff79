package marker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/starford/memolog/internal/models"
)

// Priority is the urgency of a task, written as one to three "!" right after
// the checkbox.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var (
	priorityRe      = regexp.MustCompile(`^\s*[-*]\s*\[[ xX]\]\s*(!{1,3})`)
	priorityStripRe = regexp.MustCompile(`^(\s*[-*]\s*\[[ xX]\])\s*!{0,3}\s*`)
)

// ParsePriority maps a name to a Priority; unknown names yield PriorityNone.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(s)) {
	case PriorityLow:
		return PriorityLow
	case PriorityMedium:
		return PriorityMedium
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityNone
	}
}

// Mark returns the "!" run for p.
func (p Priority) Mark() string {
	return strings.Repeat("!", p.Weight())
}

// Weight orders priorities for sorting; PriorityNone weighs 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func linePriority(line string) Priority {
	m := priorityRe.FindStringSubmatch(line)
	if m == nil {
		return PriorityNone
	}
	switch len(m[1]) {
	case 3:
		return PriorityHigh
	case 2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ExtractPriority returns the priority of the first task line that has one.
func ExtractPriority(n models.Note) Priority {
	for _, line := range strings.Split(n.Content, "\n") {
		if p := linePriority(line); p != PriorityNone {
			return p
		}
	}
	return PriorityNone
}

// SetTaskPriority replaces the priority mark of every task line in content.
// PriorityNone clears existing marks.
func SetTaskPriority(content string, p Priority) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		loc := priorityStripRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		head, rest := line[:loc[3]], line[loc[1]:]
		if p != PriorityNone {
			head += " " + p.Mark()
		}
		lines[i] = strings.TrimRight(head+" "+rest, " ")
	}
	return strings.Join(lines, "\n")
}

// SortByPriority orders notes by priority weight, then by display time, both
// descending. The input slice is sorted in place and returned.
func SortByPriority(notes []models.Note) []models.Note {
	sort.SliceStable(notes, func(i, j int) bool {
		wi, wj := ExtractPriority(notes[i]).Weight(), ExtractPriority(notes[j]).Weight()
		if wi != wj {
			return wi > wj
		}
		return notes[i].DisplayTime.After(notes[j].DisplayTime)
	})
	return notes
}
