package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/memolog/internal/marker"
)

// ScheduleFilter selects which schedules to return.
type ScheduleFilter string

const (
	ScheduleAll      ScheduleFilter = "all"
	ScheduleToday    ScheduleFilter = "today"
	ScheduleDate     ScheduleFilter = "date"
	ScheduleUpcoming ScheduleFilter = "upcoming"
)

// ParseScheduleFilter maps a query value to a filter; unknown values mean all.
func ParseScheduleFilter(s string) ScheduleFilter {
	switch f := ScheduleFilter(s); f {
	case ScheduleToday, ScheduleDate, ScheduleUpcoming:
		return f
	default:
		return ScheduleAll
	}
}

// Schedules returns schedules earliest first. date ("YYYY-MM-DD") is used by
// ScheduleDate only.
func (s *Service) Schedules(ctx context.Context, filter ScheduleFilter, date string, now time.Time) ([]marker.Schedule, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: schedules: %w", err)
	}
	now = now.In(s.loc)
	all := marker.ExtractSchedules(notes, s.loc)
	var out []marker.Schedule
	switch filter {
	case ScheduleToday:
		out = marker.TodaySchedules(all, now)
	case ScheduleDate:
		out = marker.SchedulesOn(all, date)
	case ScheduleUpcoming:
		out = marker.UpcomingSchedules(all, now)
	default:
		out = all
	}
	if out == nil {
		out = []marker.Schedule{}
	}
	return out, nil
}

// SchedulesBetween returns schedules strictly inside (from, to).
func (s *Service) SchedulesBetween(ctx context.Context, from, to time.Time) ([]marker.Schedule, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: schedules: %w", err)
	}
	return marker.SchedulesBetween(marker.ExtractSchedules(notes, s.loc), from, to), nil
}
