package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/memolog/internal/apperr"
	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/sse"
)

// TaskSummary is one task memo in the priority view.
type TaskSummary struct {
	ID       string          `json:"id"`
	Priority marker.Priority `json:"priority"`
	Tasks    marker.TaskList `json:"tasks"`
	Done     int             `json:"done"`
	Total    int             `json:"total"`
	Note     models.Note     `json:"note"`
}

// Tasks returns the task list of memo id.
func (s *Service) Tasks(ctx context.Context, id string) (marker.TaskList, error) {
	n, err := s.taskNote(ctx, id, "tasks")
	if err != nil {
		return marker.TaskList{}, err
	}
	return marker.ExtractTasks(n.Content), nil
}

// ToggleTask flips the checkbox on line of memo id. A non-empty text must
// match the task text on that line.
func (s *Service) ToggleTask(ctx context.Context, id string, line int, text string) (models.Note, error) {
	return s.editTasks(ctx, id, "toggle", func(content string) (string, error) {
		updated, ok := marker.ToggleTaskLine(content, line, text)
		if !ok {
			return "", fmt.Errorf("line %d: %w", line, apperr.ErrMarkerNotFound)
		}
		return updated, nil
	})
}

// SetPriority replaces the priority mark on every task line of memo id.
func (s *Service) SetPriority(ctx context.Context, id string, p marker.Priority) (models.Note, error) {
	return s.editTasks(ctx, id, "priority", func(content string) (string, error) {
		return marker.SetTaskPriority(content, p), nil
	})
}

// AddSubtask appends an open subtask to memo id.
func (s *Service) AddSubtask(ctx context.Context, id, text string) (models.Note, error) {
	if strings.TrimSpace(text) == "" {
		return models.Note{}, fmt.Errorf("tracker: subtask %s: empty text: %w", id, apperr.ErrInvalidInput)
	}
	return s.editTasks(ctx, id, "subtask", func(content string) (string, error) {
		return marker.AppendSubtask(content, text), nil
	})
}

// TasksByPriority lists every task memo, highest priority first and newest
// first within a priority.
func (s *Service) TasksByPriority(ctx context.Context) ([]TaskSummary, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: tasks by priority: %w", err)
	}
	var tasks []models.Note
	for _, n := range notes {
		if marker.IsTaskNote(n) {
			tasks = append(tasks, n)
		}
	}
	marker.SortByPriority(tasks)

	out := make([]TaskSummary, 0, len(tasks))
	for _, n := range tasks {
		list := marker.ExtractTasks(n.Content)
		done, total := list.Progress()
		out = append(out, TaskSummary{
			ID:       n.ID,
			Priority: marker.ExtractPriority(n),
			Tasks:    list,
			Done:     done,
			Total:    total,
			Note:     n,
		})
	}
	return out, nil
}

func (s *Service) taskNote(ctx context.Context, id, action string) (models.Note, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return models.Note{}, fmt.Errorf("tracker: %s %s: %w", action, id, err)
	}
	if !marker.IsTaskNote(n) {
		return models.Note{}, fmt.Errorf("tracker: %s %s: %w", action, id, apperr.ErrMarkerNotFound)
	}
	return n, nil
}

func (s *Service) editTasks(ctx context.Context, id, kind string, edit func(string) (string, error)) (models.Note, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	n, err := s.taskNote(ctx, id, kind)
	if err != nil {
		return models.Note{}, s.fail(kind, err)
	}
	content, err := edit(n.Content)
	if err != nil {
		return models.Note{}, s.fail(kind, fmt.Errorf("tracker: %s %s: %w", kind, id, err))
	}
	if content == n.Content {
		return n, nil
	}
	updated, err := s.store.UpdateNote(ctx, id, content, n.Checksum)
	if err != nil {
		return models.Note{}, s.fail(kind, fmt.Errorf("tracker: %s %s: %w", kind, id, err))
	}
	s.metrics.TaskChanged(kind)
	done, total := marker.ExtractTasks(updated.Content).Progress()
	s.events.Emit(sse.TypeTaskUpdated, map[string]any{"id": id, "change": kind, "done": done, "total": total})
	return updated, nil
}
