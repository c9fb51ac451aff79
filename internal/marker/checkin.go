package marker

import (
	"strings"

	"github.com/starford/memolog/internal/models"
)

// DefaultCheckinTitle is used when a check-in line carries no title.
const DefaultCheckinTitle = "打卡"

// ExtractCheckinTitle returns the text after "-[*]" on the first check-in line.
func ExtractCheckinTitle(n models.Note) string {
	for _, line := range strings.Split(n.Content, "\n") {
		if !strings.Contains(line, checkinMarker) {
			continue
		}
		m := checkinTitleRe.FindStringSubmatch(line)
		if m == nil {
			return DefaultCheckinTitle
		}
		if title := strings.TrimSpace(m[1]); title != "" {
			return title
		}
		return DefaultCheckinTitle
	}
	return DefaultCheckinTitle
}
