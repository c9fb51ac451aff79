package marker

import (
	"sort"
	"strings"
	"time"

	"github.com/starford/memolog/internal/models"
)

// DefaultScheduleTitle is used when nothing is left after stripping the
// schedule marker and date-time.
const DefaultScheduleTitle = "日程安排"

const (
	scheduleInLayout  = "2006/01/02 15:04:05"
	scheduleOutLayout = "2006-01-02 15:04:05"
	upcomingWindow    = 7 * 24 * time.Hour
)

// Schedule is a dated entry extracted from a schedule memo.
type Schedule struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	DateTime string      `json:"datetime"`
	At       time.Time   `json:"at"`
	Note     models.Note `json:"-"`
}

// ExtractDateTime finds the first "YYYY/MM/DD HH:mm[:ss]" token and returns it
// as "YYYY-MM-DD HH:mm:ss". Calendar-invalid tokens are rejected. The result
// is the written wall-clock time and does not depend on any zone.
func ExtractDateTime(content string) (string, bool) {
	t, ok := parseDateTime(content, time.UTC)
	if !ok {
		return "", false
	}
	return t.Format(scheduleOutLayout), true
}

func parseDateTime(content string, loc *time.Location) (time.Time, bool) {
	raw := dateTimeRe.FindString(content)
	if raw == "" {
		return time.Time{}, false
	}
	fields := strings.Fields(raw)
	date, clock := fields[0], fields[1]
	if strings.Count(clock, ":") == 1 {
		clock += ":00"
	}
	t, err := time.ParseInLocation(scheduleInLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractScheduleTitle strips the schedule marker and every date-time token.
func ExtractScheduleTitle(content string) string {
	title := content
	if loc := scheduleMarkerRe.FindStringIndex(title); loc != nil {
		title = title[:loc[0]] + title[loc[1]:]
	}
	title = strings.TrimSpace(title)
	title = strings.TrimSpace(dateTimeRe.ReplaceAllString(title, ""))
	if title == "" {
		return DefaultScheduleTitle
	}
	return title
}

// ExtractSchedule returns the schedule carried by the note, interpreting its
// date-time in loc.
func ExtractSchedule(n models.Note, loc *time.Location) (Schedule, bool) {
	if !IsSchedule(n) {
		return Schedule{}, false
	}
	wall, ok := ExtractDateTime(n.Content)
	if !ok {
		return Schedule{}, false
	}
	at, ok := parseDateTime(n.Content, loc)
	if !ok {
		return Schedule{}, false
	}
	return Schedule{
		ID:       n.ID,
		Title:    ExtractScheduleTitle(n.Content),
		DateTime: wall,
		At:       at,
		Note:     n,
	}, true
}

// ExtractSchedules collects every schedule in notes, earliest first.
func ExtractSchedules(notes []models.Note, loc *time.Location) []Schedule {
	var out []Schedule
	for _, n := range notes {
		if s, ok := ExtractSchedule(n, loc); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// SchedulesOn keeps the schedules falling on day ("YYYY-MM-DD").
func SchedulesOn(schedules []Schedule, day string) []Schedule {
	var out []Schedule
	for _, s := range schedules {
		if DayKey(s.At, s.At.Location()) == day {
			out = append(out, s)
		}
	}
	return out
}

// TodaySchedules keeps the schedules falling on the calendar day of now.
func TodaySchedules(schedules []Schedule, now time.Time) []Schedule {
	return SchedulesOn(schedules, DayKey(now, now.Location()))
}

// UpcomingSchedules keeps the schedules strictly between now and seven days
// from now.
func UpcomingSchedules(schedules []Schedule, now time.Time) []Schedule {
	return SchedulesBetween(schedules, now, now.Add(upcomingWindow))
}

// SchedulesBetween keeps the schedules strictly after from and before to.
func SchedulesBetween(schedules []Schedule, from, to time.Time) []Schedule {
	var out []Schedule
	for _, s := range schedules {
		if s.At.After(from) && s.At.Before(to) {
			out = append(out, s)
		}
	}
	return out
}
