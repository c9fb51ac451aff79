package marker

import (
	"strings"
	"unicode"
)

// Task is one checkbox line of a task memo.
type Task struct {
	Line      int      `json:"line"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Level     int      `json:"level"`
	Priority  Priority `json:"priority,omitempty"`
}

// TaskList is the main task of a memo and its subtasks. Only the first
// non-indented task line is the main task; later ones are ignored.
type TaskList struct {
	Main     *Task  `json:"main,omitempty"`
	Subtasks []Task `json:"subtasks"`
}

// Progress returns completed and total subtask counts.
func (l TaskList) Progress() (done, total int) {
	for _, t := range l.Subtasks {
		if t.Completed {
			done++
		}
	}
	return done, len(l.Subtasks)
}

// ExtractTasks parses every task line of content.
func ExtractTasks(content string) TaskList {
	list := TaskList{Subtasks: []Task{}}
	for i, line := range strings.Split(content, "\n") {
		m := taskLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		t := Task{
			Line:      i,
			Text:      strings.TrimSpace(m[2]),
			Completed: m[1] != " ",
			Priority:  linePriority(line),
		}
		indented := line != "" && unicode.IsSpace(rune(line[0]))
		switch {
		case indented:
			t.Level = 1
			list.Subtasks = append(list.Subtasks, t)
		case list.Main == nil:
			list.Main = &t
		}
	}
	return list
}

var taskPrefixes = []string{"- [", "-[", "* [", "*["}

// ToggleTaskLine flips the checkbox of the task on line lineIndex whose text
// is text. Prefix variants are tried in a fixed order and only the first
// occurrence on the line is replaced. It reports false and returns content
// unchanged when no variant matches.
func ToggleTaskLine(content string, lineIndex int, text string) (string, bool) {
	lines := strings.Split(content, "\n")
	if lineIndex < 0 || lineIndex >= len(lines) {
		return content, false
	}
	line := lines[lineIndex]
	for _, prefix := range taskPrefixes {
		idx := strings.Index(line, prefix)
		if idx < 0 {
			continue
		}
		mark := idx + len(prefix)
		if mark+1 >= len(line) || line[mark+1] != ']' {
			continue
		}
		var flipped byte
		switch line[mark] {
		case ' ':
			flipped = 'x'
		case 'x', 'X':
			flipped = ' '
		default:
			continue
		}
		if text != "" && strings.TrimSpace(line[mark+2:]) != strings.TrimSpace(text) {
			continue
		}
		lines[lineIndex] = line[:mark] + string(flipped) + line[mark+1:]
		return strings.Join(lines, "\n"), true
	}
	return content, false
}

// AppendSubtask appends an indented open task line.
func AppendSubtask(content, text string) string {
	return content + "\n  - [ ] " + strings.TrimSpace(text)
}
