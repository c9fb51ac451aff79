package marker

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/memolog/internal/models"
)

var testNow = time.Date(2025, 8, 6, 10, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func TestReferences(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"see @memos/1 today", true},
		{"see [[memos/1]]", true},
		{"see @memos/1", true},
		{"see @memos/12", false},
		{"see @memos/1，done", true},
		{"see [[memos/12]]", false},
		{"nothing", false},
	}
	for _, c := range cases {
		if got := References(c.content, "memos/1"); got != c.want {
			t.Errorf("References(%q) = %v, want %v", c.content, got, c.want)
		}
	}
}

func TestFindCompletionRecords_BackReferenceForms(t *testing.T) {
	parent := note("memos/run", "-[*] Morning run", daysAgo(10))
	notes := []models.Note{
		parent,
		note("memos/r1", "✅ Morning run - 打卡第 1 次\n📝 关联任务：@memos/run", daysAgo(2)),
		note("memos/r2", "✅ Morning run - 打卡第 2 次\n📝 关联任务：[[memos/run]]", daysAgo(1)),
		note("memos/other", "[[memos/run]] mentioned without record phrase", daysAgo(1)),
	}
	got := FindCompletionRecords(parent, notes, KindCheckin)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "memos/r2" || got[1].ID != "memos/r1" {
		t.Errorf("order = %s, %s; want newest first", got[0].ID, got[1].ID)
	}
}

func TestFindCompletionRecords_GoalTitleFallback(t *testing.T) {
	parent := note("memos/goal", "-[0] Read books (2/10)", daysAgo(5))
	notes := []models.Note{
		note("memos/legacy", "✅ 完成目标：Read books，当前进度：1/10", daysAgo(3)),
		note("memos/linked", "完成目标第 2 次 - Read books\n目标进度：2/10\n原始目标：@memos/goal", daysAgo(2)),
		note("memos/prefix", "✅ 完成目标：Read books twice，当前进度：1/3", daysAgo(1)),
		note("memos/achieved", "目标达成 [[memos/goal]]", daysAgo(0)),
	}
	got := FindCompletionRecords(parent, notes, KindGoal)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	for _, r := range got {
		if r.ID == "memos/prefix" {
			t.Error("title prefix must not match a longer title")
		}
	}
}

func TestFindCompletionRecords_KindsDoNotMix(t *testing.T) {
	parent := note("memos/p", "-[*] Swim\n-[0] Swim (0/3)", daysAgo(5))
	notes := []models.Note{
		note("memos/c", "✅ Swim - 打卡第 1 次 [[memos/p]]", daysAgo(1)),
	}
	if n := len(FindCompletionRecords(parent, notes, KindGoal)); n != 0 {
		t.Errorf("goal records = %d, want 0", n)
	}
	if n := len(FindCompletionRecords(parent, notes, KindCheckin)); n != 1 {
		t.Errorf("check-in records = %d, want 1", n)
	}
}

func TestGroupByDay(t *testing.T) {
	records := []models.Note{
		note("a", "", daysAgo(1).Add(time.Hour)),
		note("b", "", daysAgo(2)),
		note("c", "", daysAgo(1)),
	}
	g := GroupByDay(records, time.UTC)
	keys := g.Keys()
	if len(keys) != 2 || keys[0] != "2025-08-05" || keys[1] != "2025-08-04" {
		t.Fatalf("keys = %v", keys)
	}
	if len(g.Get("2025-08-05")) != 2 {
		t.Errorf("2025-08-05 bucket = %d, want 2", len(g.Get("2025-08-05")))
	}
	desc := g.SortedDesc()
	if desc[0] != "2025-08-05" {
		t.Errorf("SortedDesc = %v", desc)
	}
	counts := g.Counts()
	if counts[0].Date != "2025-08-04" || counts[1].Count != 2 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestGroupByDay_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	late := time.Date(2025, 8, 5, 20, 0, 0, 0, time.UTC) // 05:00 on the 6th in Tokyo
	g := GroupByDay([]models.Note{note("a", "", late)}, tokyo)
	if g.Keys()[0] != "2025-08-06" {
		t.Errorf("key = %s, want 2025-08-06", g.Keys()[0])
	}
}

func TestHasOccurredToday(t *testing.T) {
	parent := note("memos/run", "-[*] Run", daysAgo(10))
	yesterday := []models.Note{note("r", "✅ Run - 打卡第 1 次 [[memos/run]]", daysAgo(1))}
	if HasOccurredToday(parent, yesterday, KindCheckin, testNow) {
		t.Error("yesterday's record should not count as today")
	}
	today := append(yesterday, note("r2", "✅ Run - 打卡第 2 次 [[memos/run]]", testNow.Add(-time.Hour)))
	if !HasOccurredToday(parent, today, KindCheckin, testNow) {
		t.Error("expected record today")
	}
}

func TestIsCompletionRecord(t *testing.T) {
	yes := []string{
		"✅ Run - 打卡第 1 次",
		"✅ 完成目标：Read，当前进度：1/2",
		"目标达成!",
		"今天完成打卡",
	}
	for _, c := range yes {
		if !IsCompletionRecord(models.Note{Content: c}) {
			t.Errorf("IsCompletionRecord(%q) = false", c)
		}
	}
	for _, c := range []string{"-[0] Read (0/2)\n\n目标描述：Read", "-[*] Run", "打卡第一天"} {
		if IsCompletionRecord(models.Note{Content: c}) {
			t.Errorf("IsCompletionRecord(%q) = true", c)
		}
	}
}

func TestBuildCompletionRecordText_CheckinRoundTrip(t *testing.T) {
	parent := note("users/1/memos/42", "-[*] Morning run", daysAgo(3))
	text := BuildCompletionRecordText(RecordSpec{
		Kind:     KindCheckin,
		Title:    ExtractCheckinTitle(parent),
		Ordinal:  1,
		ParentID: parent.ID,
		At:       testNow,
	})
	if !strings.Contains(text, "打卡第 1 次") || !strings.Contains(text, "#Morningrun") {
		t.Errorf("text = %q", text)
	}
	rec := note("users/1/memos/43", text, testNow)
	got := FindCompletionRecords(parent, []models.Note{parent, rec}, KindCheckin)
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Errorf("record not rediscovered: %+v", got)
	}
	info, ok := ParseCompletionRecord(text)
	if !ok || info.Kind != KindCheckin || info.Title != "Morning run" || info.Ordinal != 1 {
		t.Errorf("parsed = %+v, ok = %v", info, ok)
	}
}

func TestBuildCompletionRecordText_GoalRoundTrip(t *testing.T) {
	parent := note("memos/goal", "-[0] Read books (3/10)", daysAgo(3))
	text := BuildCompletionRecordText(RecordSpec{
		Kind:     KindGoal,
		Title:    "Read books",
		Ordinal:  4,
		Progress: "4/10",
		ParentID: parent.ID,
		At:       testNow,
	})
	if !strings.Contains(text, "[[memos/goal]]") || !strings.Contains(text, "2025-08-06 10:00:00") {
		t.Errorf("text = %q", text)
	}
	if got := FindCompletionRecords(parent, []models.Note{note("memos/r", text, testNow)}, KindGoal); len(got) != 1 {
		t.Errorf("goal record not rediscovered")
	}
	info, ok := ParseCompletionRecord(text)
	if !ok || info.Format != "goal-inline" || info.Current != 4 || info.Target != 10 || info.Ordinal != 4 {
		t.Errorf("parsed = %+v", info)
	}
}

func TestParseCompletionRecord_HistoricalFormats(t *testing.T) {
	cases := []struct {
		content string
		format  string
		title   string
		current int
	}{
		{"完成目标第 3 次 - Read books\n\n完成时间：2025-08-01 10:00:00\n目标进度：3/10\n原始目标：@memos/1", "goal-numbered", "Read books", 3},
		{"✅ 完成目标：Read books，当前进度：5/10", "goal-inline", "Read books", 5},
		{"✅ 完成目标：Read books\n📈 当前进度：6/10", "goal-multiline", "Read books", 6},
	}
	for _, c := range cases {
		info, ok := ParseCompletionRecord(c.content)
		if !ok {
			t.Errorf("no match for %q", c.content)
			continue
		}
		if info.Format != c.format || info.Title != c.title || info.Current != c.current {
			t.Errorf("ParseCompletionRecord(%q) = %+v", c.content, info)
		}
	}
	if _, ok := ParseCompletionRecord("just a memo"); ok {
		t.Error("expected miss")
	}
}
