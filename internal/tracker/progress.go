package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/memolog/internal/apperr"
	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/sse"
)

// CheckinResult is the outcome of a check-in.
type CheckinResult struct {
	Record models.Note         `json:"record"`
	Stats  marker.CheckinStats `json:"stats"`
}

// GoalResult is the outcome of a goal completion.
type GoalResult struct {
	Record models.Note      `json:"record"`
	Goal   models.Note      `json:"goal"`
	Stats  marker.GoalStats `json:"stats"`
}

// CheckIn appends a check-in record to the memo id.
func (s *Service) CheckIn(ctx context.Context, id string, now time.Time) (CheckinResult, error) {
	now = now.In(s.loc)
	unlock := s.locks.lock(id)
	defer unlock()

	parent, err := s.store.GetNote(ctx, id)
	if err != nil {
		return CheckinResult{}, s.fail("check_in", fmt.Errorf("tracker: check in %s: %w", id, err))
	}
	if !marker.IsCheckin(parent) {
		return CheckinResult{}, s.fail("check_in", fmt.Errorf("tracker: check in %s: %w", id, apperr.ErrMarkerNotFound))
	}
	notes, err := s.candidates(ctx, parent, marker.KindCheckin)
	if err != nil {
		return CheckinResult{}, s.fail("check_in", fmt.Errorf("tracker: check in %s: %w", id, err))
	}
	records := marker.FindCompletionRecords(parent, notes, marker.KindCheckin)

	text := marker.BuildCompletionRecordText(marker.RecordSpec{
		Kind:     marker.KindCheckin,
		Title:    marker.ExtractCheckinTitle(parent),
		Ordinal:  len(records) + 1,
		ParentID: parent.ID,
		At:       now,
	})
	record, err := s.store.CreateNote(ctx, text, models.VisibilityPrivate)
	if err != nil {
		return CheckinResult{}, s.fail("check_in", fmt.Errorf("tracker: check in %s: create record: %w", id, err))
	}

	stats, err := s.checkinStats(ctx, parent, now)
	if err != nil {
		return CheckinResult{}, s.fail("check_in", err)
	}
	s.metrics.CheckinRecorded()
	s.events.Emit(sse.TypeCheckinRecorded, map[string]any{
		"id":          parent.ID,
		"record_id":   record.ID,
		"total_count": stats.TotalCount,
		"streak_days": stats.StreakDays,
	})
	s.logger.Info("tracker: checked in",
		slog.String("id", parent.ID),
		slog.String("record_id", record.ID),
		slog.Int("total", stats.TotalCount))
	return CheckinResult{Record: record, Stats: stats}, nil
}

// CompleteGoal records amount units of progress on the goal memo id.
//
// The starting point is the larger of the marker's current value and the
// highest progress written into any completion record, so a marker that
// missed an update catches up. The record is written before the marker line
// is rewritten; if the rewrite fails the record still stands.
func (s *Service) CompleteGoal(ctx context.Context, id string, amount int, now time.Time) (GoalResult, error) {
	if amount < 1 {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: amount %d: %w", id, amount, apperr.ErrInvalidAmount))
	}
	now = now.In(s.loc)
	unlock := s.locks.lock(id)
	defer unlock()

	parent, err := s.store.GetNote(ctx, id)
	if err != nil {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: %w", id, err))
	}
	info, ok := marker.ExtractGoalInfo(parent)
	if !ok {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: %w", id, apperr.ErrMarkerNotFound))
	}
	notes, err := s.candidates(ctx, parent, marker.KindGoal)
	if err != nil {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: %w", id, err))
	}
	records := marker.FindCompletionRecords(parent, notes, marker.KindGoal)

	base := max(info.Current, marker.RecordedProgress(records))
	if base >= info.Target {
		return GoalResult{}, fmt.Errorf("tracker: complete goal %s: %w", id, apperr.ErrGoalCompleted)
	}
	next := marker.NextGoalCurrent(base, info.Target, amount)

	text := marker.BuildCompletionRecordText(marker.RecordSpec{
		Kind:     marker.KindGoal,
		Title:    info.Title,
		Ordinal:  len(records) + 1,
		Progress: fmt.Sprintf("%d/%d", next, info.Target),
		ParentID: parent.ID,
		At:       now,
	})
	record, err := s.store.CreateNote(ctx, text, models.VisibilityPrivate)
	if err != nil {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: create record: %w", id, err))
	}

	goal, err := s.rewriteGoal(ctx, parent, next)
	if err != nil {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: update marker: %w", id, err))
	}

	notes, err = s.candidates(ctx, goal, marker.KindGoal)
	if err != nil {
		return GoalResult{}, s.fail("complete_goal", err)
	}
	stats, ok := marker.ComputeGoalStats(goal, notes, now)
	if !ok {
		return GoalResult{}, s.fail("complete_goal", fmt.Errorf("tracker: complete goal %s: stats: %w", id, apperr.ErrMarkerNotFound))
	}

	s.metrics.GoalProgressed(next - base)
	s.events.Emit(sse.TypeGoalProgressed, map[string]any{
		"id":        goal.ID,
		"record_id": record.ID,
		"current":   stats.Current,
		"target":    stats.Target,
		"completed": stats.IsCompleted,
	})
	s.logger.Info("tracker: goal progressed",
		slog.String("id", goal.ID),
		slog.Int("current", stats.Current),
		slog.Int("target", stats.Target))
	return GoalResult{Record: record, Goal: goal, Stats: stats}, nil
}

// rewriteGoal sets the marker's current value, re-reading once if the memo
// was edited since it was loaded. The marker never moves backwards: a retry
// keeps a value that advanced in the meantime.
func (s *Service) rewriteGoal(ctx context.Context, parent models.Note, current int) (models.Note, error) {
	for attempt := 0; ; attempt++ {
		if info, ok := marker.ExtractGoalInfo(parent); ok && info.Current > current {
			current = info.Current
		}
		content, err := marker.BuildUpdatedGoalContent(parent.Content, current)
		if err != nil {
			return models.Note{}, err
		}
		if content == parent.Content {
			return parent, nil
		}
		updated, err := s.store.UpdateNote(ctx, parent.ID, content, parent.Checksum)
		if err == nil || !errors.Is(err, apperr.ErrConflict) || attempt > 0 {
			return updated, err
		}
		if parent, err = s.store.GetNote(ctx, parent.ID); err != nil {
			return models.Note{}, err
		}
	}
}

// CreateGoal writes a new goal memo.
func (s *Service) CreateGoal(ctx context.Context, title string, target int) (models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Note{}, fmt.Errorf("tracker: create goal: empty title: %w", apperr.ErrInvalidInput)
	}
	if target < 1 {
		return models.Note{}, fmt.Errorf("tracker: create goal: target %d: %w", target, apperr.ErrInvalidAmount)
	}
	n, err := s.store.CreateNote(ctx, marker.BuildGoalNoteContent(title, target), models.VisibilityPrivate)
	if err != nil {
		return models.Note{}, s.fail("create_goal", fmt.Errorf("tracker: create goal: %w", err))
	}
	s.events.Emit(sse.TypeGoalCreated, map[string]any{"id": n.ID, "title": title, "target": target})
	return n, nil
}

// CheckinStats computes statistics for the check-in memo id.
func (s *Service) CheckinStats(ctx context.Context, id string, now time.Time) (marker.CheckinStats, error) {
	parent, err := s.store.GetNote(ctx, id)
	if err != nil {
		return marker.CheckinStats{}, fmt.Errorf("tracker: checkin stats %s: %w", id, err)
	}
	if !marker.IsCheckin(parent) {
		return marker.CheckinStats{}, fmt.Errorf("tracker: checkin stats %s: %w", id, apperr.ErrMarkerNotFound)
	}
	return s.checkinStats(ctx, parent, now.In(s.loc))
}

func (s *Service) checkinStats(ctx context.Context, parent models.Note, now time.Time) (marker.CheckinStats, error) {
	notes, err := s.candidates(ctx, parent, marker.KindCheckin)
	if err != nil {
		return marker.CheckinStats{}, fmt.Errorf("tracker: checkin stats %s: %w", parent.ID, err)
	}
	return marker.ComputeCheckinStats(parent, notes, now), nil
}

// GoalStats computes statistics for the goal memo id.
func (s *Service) GoalStats(ctx context.Context, id string, now time.Time) (marker.GoalStats, error) {
	parent, err := s.store.GetNote(ctx, id)
	if err != nil {
		return marker.GoalStats{}, fmt.Errorf("tracker: goal stats %s: %w", id, err)
	}
	notes, err := s.candidates(ctx, parent, marker.KindGoal)
	if err != nil {
		return marker.GoalStats{}, fmt.Errorf("tracker: goal stats %s: %w", id, err)
	}
	stats, ok := marker.ComputeGoalStats(parent, notes, now.In(s.loc))
	if !ok {
		return marker.GoalStats{}, fmt.Errorf("tracker: goal stats %s: %w", id, apperr.ErrMarkerNotFound)
	}
	return stats, nil
}
