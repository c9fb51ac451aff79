package marker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which marker a completion record belongs to.
type Kind int

const (
	KindCheckin Kind = iota + 1
	KindGoal
)

func (k Kind) String() string {
	switch k {
	case KindCheckin:
		return "checkin"
	case KindGoal:
		return "goal"
	default:
		return "unknown"
	}
}

const (
	checkinTag    = "#打卡记录"
	goalRecordTag = "#目标完成记录"
	timestampFmt  = "2006-01-02 15:04:05"
)

// RecordSpec describes a completion record to be written.
type RecordSpec struct {
	Kind     Kind
	Title    string
	Ordinal  int
	Progress string // "current/target"; goals only
	ParentID string
	At       time.Time
}

// BuildCompletionRecordText renders the content of a new completion record.
// The record links back to its parent with "[[<id>]]" so later scans find it.
func BuildCompletionRecordText(spec RecordSpec) string {
	ts := spec.At.Format(timestampFmt)
	switch spec.Kind {
	case KindGoal:
		return fmt.Sprintf("✅ 完成目标：%s，当前进度：%s\n\n🔢 第 %d 次完成\n⏰ 完成时间：%s\n📝 原始目标：[[%s]]\n\n%s",
			spec.Title, spec.Progress, spec.Ordinal, ts, spec.ParentID, goalRecordTag)
	default:
		return fmt.Sprintf("✅ %s - 打卡第 %d 次\n\n⏰ 打卡时间：%s\n📝 关联任务：[[%s]]\n\n%s #%s",
			spec.Title, spec.Ordinal, ts, spec.ParentID, checkinTag, strings.Join(strings.Fields(spec.Title), ""))
	}
}

// RecordInfo is what could be read back from a completion record.
type RecordInfo struct {
	Kind    Kind   `json:"kind"`
	Format  string `json:"format"`
	Title   string `json:"title"`
	Ordinal int    `json:"ordinal,omitempty"`
	Current int    `json:"current,omitempty"`
	Target  int    `json:"target,omitempty"`
}

// Progress renders "current/target", or "" when the record carries none.
func (r RecordInfo) Progress() string {
	if r.Target == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", r.Current, r.Target)
}

type recordFormat struct {
	name  string
	parse func(content string) (RecordInfo, bool)
}

var (
	goalNumberedRe   = regexp.MustCompile(`完成目标第\s*(\d+)\s*次\s*-\s*(.+?)[\n\r]`)
	goalNumberedPrRe = regexp.MustCompile(`目标进度：(\d+)/(\d+)`)
	goalInlineRe     = regexp.MustCompile(`✅ 完成目标：(.+?)，当前进度：(\d+)/(\d+)`)
	goalOrdinalRe    = regexp.MustCompile(`第\s*(\d+)\s*次完成`)
	goalMultilineRe  = regexp.MustCompile(`✅ 完成目标：(.+?)[\n\r]`)
	goalMultiPrRe    = regexp.MustCompile(`📈 当前进度：(\d+)/(\d+)`)
	checkinRecordRe  = regexp.MustCompile(`✅ (.+?) - 打卡第\s*(\d+)\s*次`)
)

// recordFormats lists every completion record shape ever written, tried in
// order; the first match wins.
var recordFormats = []recordFormat{
	{name: "goal-numbered", parse: func(c string) (RecordInfo, bool) {
		m := goalNumberedRe.FindStringSubmatch(c)
		if m == nil {
			return RecordInfo{}, false
		}
		r := RecordInfo{Kind: KindGoal, Title: strings.TrimSpace(m[2]), Ordinal: atoi(m[1])}
		if p := goalNumberedPrRe.FindStringSubmatch(c); p != nil {
			r.Current, r.Target = atoi(p[1]), atoi(p[2])
		}
		return r, true
	}},
	{name: "goal-inline", parse: func(c string) (RecordInfo, bool) {
		m := goalInlineRe.FindStringSubmatch(c)
		if m == nil {
			return RecordInfo{}, false
		}
		r := RecordInfo{Kind: KindGoal, Title: strings.TrimSpace(m[1]), Current: atoi(m[2]), Target: atoi(m[3])}
		if o := goalOrdinalRe.FindStringSubmatch(c); o != nil {
			r.Ordinal = atoi(o[1])
		}
		return r, true
	}},
	{name: "goal-multiline", parse: func(c string) (RecordInfo, bool) {
		m := goalMultilineRe.FindStringSubmatch(c)
		if m == nil {
			return RecordInfo{}, false
		}
		r := RecordInfo{Kind: KindGoal, Title: strings.TrimSpace(m[1])}
		if p := goalMultiPrRe.FindStringSubmatch(c); p != nil {
			r.Current, r.Target = atoi(p[1]), atoi(p[2])
		}
		return r, true
	}},
	{name: "checkin", parse: func(c string) (RecordInfo, bool) {
		m := checkinRecordRe.FindStringSubmatch(c)
		if m == nil {
			return RecordInfo{}, false
		}
		return RecordInfo{Kind: KindCheckin, Title: strings.TrimSpace(m[1]), Ordinal: atoi(m[2])}, true
	}},
}

// ParseCompletionRecord reads a completion record in any known format.
func ParseCompletionRecord(content string) (RecordInfo, bool) {
	for _, f := range recordFormats {
		if r, ok := f.parse(content); ok {
			r.Format = f.name
			return r, true
		}
	}
	return RecordInfo{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
