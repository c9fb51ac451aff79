package marker

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/starford/memolog/internal/models"
)

const dayLayout = "2006-01-02"

const goalAltPrefix = "✅ 完成目标："

// References reports whether content links to id as "@<id>" or "[[<id>]]".
// A mention must not run on into a longer id ("@memos/1" does not reference
// "memos/12").
func References(content, id string) bool {
	if id == "" {
		return false
	}
	if strings.Contains(content, "[["+id+"]]") {
		return true
	}
	mention := "@" + id
	for rest := content; ; {
		i := strings.Index(rest, mention)
		if i < 0 {
			return false
		}
		rest = rest[i+len(mention):]
		r, _ := utf8.DecodeRuneInString(rest)
		if rest == "" || !isIDRune(r) {
			return true
		}
	}
}

func isIDRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("/-_", r)
}

func hasKindPhrase(content string, kind Kind) bool {
	switch kind {
	case KindCheckin:
		return strings.Contains(content, "打卡第") && strings.Contains(content, "次")
	case KindGoal:
		return strings.Contains(content, "完成目标") || strings.Contains(content, "目标达成")
	default:
		return false
	}
}

// namesGoalTitle matches the legacy "✅ 完成目标：<title>" record that carries
// no back-reference. The title must be followed by a separator or the end.
func namesGoalTitle(content, title string) bool {
	if title == "" {
		return false
	}
	needle := goalAltPrefix + title
	for rest := content; ; {
		i := strings.Index(rest, needle)
		if i < 0 {
			return false
		}
		rest = rest[i+len(needle):]
		if rest == "" || strings.HasPrefix(rest, "，") || strings.HasPrefix(rest, ",") ||
			strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r") {
			return true
		}
	}
}

// IsRecordFor reports whether candidate is a completion record of parent.
func IsRecordFor(parent, candidate models.Note, kind Kind) bool {
	if candidate.ID == parent.ID {
		return false
	}
	if References(candidate.Content, parent.ID) && hasKindPhrase(candidate.Content, kind) {
		return true
	}
	if kind == KindGoal {
		info, ok := ExtractGoalInfo(parent)
		return ok && namesGoalTitle(candidate.Content, info.Title)
	}
	return false
}

// FindCompletionRecords returns the records of parent found in notes, most
// recently created first.
func FindCompletionRecords(parent models.Note, notes []models.Note, kind Kind) []models.Note {
	var out []models.Note
	for _, n := range notes {
		if IsRecordFor(parent, n, kind) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// IsCompletionRecord reports whether the note logs a goal completion or a
// check-in. Such memos are hidden from the main memo list.
func IsCompletionRecord(n models.Note) bool {
	c := n.Content
	goal := strings.Contains(c, "完成目标") || strings.Contains(c, "目标达成")
	checkin := (strings.Contains(c, "✅") && strings.Contains(c, "打卡第") && strings.Contains(c, "次")) ||
		strings.Contains(c, "完成打卡")
	return goal || checkin
}

// DayKey formats the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// DayGroups buckets records by creation day, keeping the order in which each
// day was first seen.
type DayGroups struct {
	keys  []string
	byDay map[string][]models.Note
}

// GroupByDay buckets records by the calendar day of CreatedAt in loc.
func GroupByDay(records []models.Note, loc *time.Location) *DayGroups {
	g := &DayGroups{byDay: make(map[string][]models.Note)}
	for _, r := range records {
		day := DayKey(r.CreatedAt, loc)
		if _, ok := g.byDay[day]; !ok {
			g.keys = append(g.keys, day)
		}
		g.byDay[day] = append(g.byDay[day], r)
	}
	return g
}

// Keys returns days in first-occurrence order.
func (g *DayGroups) Keys() []string {
	return append([]string(nil), g.keys...)
}

// SortedDesc returns days newest first.
func (g *DayGroups) SortedDesc() []string {
	keys := g.Keys()
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// Get returns the records of day.
func (g *DayGroups) Get(day string) []models.Note {
	return g.byDay[day]
}

// Len returns the number of distinct days.
func (g *DayGroups) Len() int {
	return len(g.keys)
}

// Counts returns one DayCount per day, oldest first.
func (g *DayGroups) Counts() []DayCount {
	out := make([]DayCount, 0, len(g.keys))
	for _, day := range g.keys {
		out = append(out, DayCount{Date: day, Count: len(g.byDay[day])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// HasOccurredToday reports whether parent has a record created on the
// calendar day of now.
func HasOccurredToday(parent models.Note, notes []models.Note, kind Kind, now time.Time) bool {
	return recordedOn(FindCompletionRecords(parent, notes, kind), now)
}
