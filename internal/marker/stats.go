package marker

import (
	"time"

	"github.com/starford/memolog/internal/models"
)

// DayCount is the number of records on one day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// CheckinStats summarises the records of a check-in memo.
type CheckinStats struct {
	Title           string     `json:"title"`
	TotalCount      int        `json:"total_count"`
	HasCheckedToday bool       `json:"has_checked_today"`
	Records         []DayCount `json:"checkin_records"`
	StreakDays      int        `json:"streak_days"`
}

// GoalStats summarises a goal memo. ActualCurrent counts completion records
// and is authoritative; GoalInfo.Current is the cached display value.
type GoalStats struct {
	GoalInfo
	ActualCurrent     int        `json:"actual_current"`
	Progress          float64    `json:"progress"`
	HasCompletedToday bool       `json:"has_completed_today"`
	Records           []DayCount `json:"completion_records"`
	IsGoalAchieved    bool       `json:"is_goal_achieved"`
}

// ComputeCheckinStats derives check-in statistics from notes.
func ComputeCheckinStats(n models.Note, notes []models.Note, now time.Time) CheckinStats {
	records := FindCompletionRecords(n, notes, KindCheckin)
	days := GroupByDay(records, now.Location()).Counts()
	return CheckinStats{
		Title:           ExtractCheckinTitle(n),
		TotalCount:      len(records),
		HasCheckedToday: recordedOn(records, now),
		Records:         days,
		StreakDays:      StreakDays(days, now),
	}
}

// ComputeGoalStats derives goal statistics from notes. It reports false when
// n carries no goal marker.
func ComputeGoalStats(n models.Note, notes []models.Note, now time.Time) (GoalStats, bool) {
	info, ok := ExtractGoalInfo(n)
	if !ok {
		return GoalStats{}, false
	}
	records := FindCompletionRecords(n, notes, KindGoal)
	total := len(records)
	var progress float64
	if info.Target > 0 {
		progress = float64(total) / float64(info.Target) * 100
		if progress > 100 {
			progress = 100
		}
	}
	return GoalStats{
		GoalInfo:          info,
		ActualCurrent:     total,
		Progress:          progress,
		HasCompletedToday: recordedOn(records, now),
		Records:           GroupByDay(records, now.Location()).Counts(),
		IsGoalAchieved:    total >= info.Target,
	}, true
}

// RecordedProgress returns the highest goal progress written into any of the
// records, or 0 when none carries one.
func RecordedProgress(records []models.Note) int {
	best := 0
	for _, r := range records {
		info, ok := ParseCompletionRecord(r.Content)
		if ok && info.Kind == KindGoal && info.Current > best {
			best = info.Current
		}
	}
	return best
}

func recordedOn(records []models.Note, now time.Time) bool {
	today := DayKey(now, now.Location())
	for _, r := range records {
		if DayKey(r.CreatedAt, now.Location()) == today {
			return true
		}
	}
	return false
}

// StreakDays counts consecutive days with records, ending today when today
// has one and yesterday otherwise.
func StreakDays(days []DayCount, now time.Time) int {
	if len(days) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(days))
	for _, d := range days {
		if d.Count > 0 {
			seen[d.Date] = struct{}{}
		}
	}
	loc := now.Location()
	cursor := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, loc)
	if _, ok := seen[DayKey(cursor, loc)]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := seen[DayKey(cursor, loc)]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}
