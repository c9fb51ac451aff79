package marker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/memolog/internal/apperr"
	"github.com/starford/memolog/internal/models"
)

// GoalInfo holds the fields of a goal marker line.
type GoalInfo struct {
	Title       string `json:"title"`
	Current     int    `json:"current"`
	Target      int    `json:"target"`
	IsCompleted bool   `json:"is_completed"`
}

// ExtractGoalInfo parses the first goal marker line of the note.
func ExtractGoalInfo(n models.Note) (GoalInfo, bool) {
	m := goalFieldsRe.FindStringSubmatch(strings.TrimSpace(n.Content))
	if m == nil {
		return GoalInfo{}, false
	}
	current, err := strconv.Atoi(m[2])
	if err != nil {
		return GoalInfo{}, false
	}
	target, err := strconv.Atoi(m[3])
	if err != nil {
		return GoalInfo{}, false
	}
	return GoalInfo{
		Title:       strings.TrimSpace(m[1]),
		Current:     current,
		Target:      target,
		IsCompleted: current >= target,
	}, true
}

// NextGoalCurrent returns the progress after adding amount, clamped to target.
// The result never drops below current.
func NextGoalCurrent(current, target, amount int) int {
	next := current + amount
	if next > target {
		next = target
	}
	if next < current {
		return current
	}
	return next
}

// BuildUpdatedGoalContent rewrites the current count of the first goal marker
// line and leaves every other byte of content untouched.
func BuildUpdatedGoalContent(content string, newCurrent int) (string, error) {
	offset := leadingSpace(content)
	loc := goalUpdateRe.FindStringSubmatchIndex(strings.TrimSpace(content))
	if loc == nil {
		return "", fmt.Errorf("marker: update goal progress: %w", apperr.ErrMarkerNotFound)
	}
	start, end := loc[4]+offset, loc[5]+offset
	if old, err := strconv.Atoi(content[start:end]); err == nil && old == newCurrent {
		return content, nil
	}
	return content[:start] + strconv.Itoa(newCurrent) + content[end:], nil
}

// BuildGoalNoteContent returns the body of a freshly created goal memo.
func BuildGoalNoteContent(title string, target int) string {
	title = strings.TrimSpace(title)
	return fmt.Sprintf("-[0] %s (0/%d)\n\n目标描述：%s\n目标次数：%d\n当前进度：0/%d\n\n#目标笔记",
		title, target, title, target, target)
}
