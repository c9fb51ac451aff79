package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/memolog/internal/apperr"
	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/testutil"
)

var now = time.Date(2025, 8, 6, 9, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) Emit(eventType string, _ any) {
	r.mu.Lock()
	r.types = append(r.types, eventType)
	r.mu.Unlock()
}

func (r *recordedEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type countingMetrics struct {
	mu       sync.Mutex
	checkins int
	units    int
	tasks    map[string]int
	failures map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{tasks: map[string]int{}, failures: map[string]int{}}
}

func (m *countingMetrics) CheckinRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins++
}

func (m *countingMetrics) GoalProgressed(units int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units += units
}

func (m *countingMetrics) TaskChanged(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[kind]++
}

func (m *countingMetrics) Failed(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[action]++
}

type env struct {
	store   *memostore.Service
	tracker *Service
	events  *recordedEvents
	metrics *countingMetrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	_, vault := testutil.TestVault(t)
	store := memostore.NewService(vault, testutil.TestDB(t), testutil.Logger(),
		memostore.WithClock(testutil.NewClock(now).Now))
	return newEnvWithStore(store)
}

func newEnvWithStore(store *memostore.Service, wrap ...func(memostore.Store) memostore.Store) *env {
	var s memostore.Store = store
	for _, w := range wrap {
		s = w(s)
	}
	e := &env{store: store, events: &recordedEvents{}, metrics: newCountingMetrics()}
	e.tracker = NewService(s, testutil.Logger(),
		WithPublisher(e.events),
		WithMetrics(e.metrics),
		WithLocation(time.UTC))
	return e
}

func (e *env) create(t *testing.T, content string) models.Note {
	t.Helper()
	n, err := e.store.CreateNote(context.Background(), content, models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return n
}

func TestCheckIn(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	parent := e.create(t, "-[*] Morning run")

	first, err := e.tracker.CheckIn(ctx, parent.ID, now)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if !strings.Contains(first.Record.Content, "✅ Morning run - 打卡第 1 次") {
		t.Errorf("record = %q", first.Record.Content)
	}
	if first.Record.Visibility != models.VisibilityPrivate {
		t.Errorf("visibility = %q", first.Record.Visibility)
	}

	second, err := e.tracker.CheckIn(ctx, parent.ID, now)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if !strings.Contains(second.Record.Content, "打卡第 2 次") || !strings.Contains(second.Record.Content, "[["+parent.ID+"]]") {
		t.Errorf("record = %q", second.Record.Content)
	}
	st := second.Stats
	if st.TotalCount != 2 || !st.HasCheckedToday || st.StreakDays != 1 || st.Title != "Morning run" {
		t.Errorf("stats = %+v", st)
	}
	if len(st.Records) != 1 || st.Records[0].Date != "2025-08-06" || st.Records[0].Count != 2 {
		t.Errorf("records = %+v", st.Records)
	}
	if e.events.count("checkin.recorded") != 2 || e.metrics.checkins != 2 {
		t.Errorf("events = %v, metrics = %d", e.events.types, e.metrics.checkins)
	}
}

func TestCheckIn_RequiresMarker(t *testing.T) {
	e := newEnv(t)
	plain := e.create(t, "just a thought")

	_, err := e.tracker.CheckIn(context.Background(), plain.ID, now)
	if !errors.Is(err, apperr.ErrMarkerNotFound) {
		t.Errorf("err = %v, want ErrMarkerNotFound", err)
	}
	if _, err := e.tracker.CheckIn(context.Background(), "memos/none", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if e.metrics.failures["check_in"] != 2 {
		t.Errorf("failures = %v", e.metrics.failures)
	}
}

func TestCompleteGoal_ClampsAndStops(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	goal := e.create(t, marker.BuildGoalNoteContent("Read books", 3))

	res, err := e.tracker.CompleteGoal(ctx, goal.ID, 1, now)
	if err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	if !strings.HasPrefix(res.Goal.Content, "-[0] Read books (1/3)") {
		t.Errorf("goal = %q", res.Goal.Content)
	}
	if !strings.Contains(res.Record.Content, "当前进度：1/3") || !strings.Contains(res.Record.Content, "第 1 次完成") {
		t.Errorf("record = %q", res.Record.Content)
	}

	res, err = e.tracker.CompleteGoal(ctx, goal.ID, 5, now)
	if err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	if !strings.HasPrefix(res.Goal.Content, "-[0] Read books (3/3)") {
		t.Errorf("goal = %q", res.Goal.Content)
	}
	if res.Stats.ActualCurrent != 2 || !res.Stats.HasCompletedToday {
		t.Errorf("stats = %+v", res.Stats)
	}
	if e.metrics.units != 3 {
		t.Errorf("units = %d, want 3", e.metrics.units)
	}

	if _, err := e.tracker.CompleteGoal(ctx, goal.ID, 1, now); !errors.Is(err, apperr.ErrGoalCompleted) {
		t.Errorf("err = %v, want ErrGoalCompleted", err)
	}
	// The untouched lines of the goal memo survive the rewrites.
	got, _ := e.store.GetNote(ctx, goal.ID)
	if !strings.Contains(got.Content, "目标描述：Read books") || !strings.HasSuffix(got.Content, "#目标笔记") {
		t.Errorf("goal body = %q", got.Content)
	}
}

func TestCompleteGoal_RejectsBadAmount(t *testing.T) {
	e := newEnv(t)
	goal := e.create(t, "-[0] Swim (0/2)")
	for _, amount := range []int{0, -3} {
		if _, err := e.tracker.CompleteGoal(context.Background(), goal.ID, amount, now); !errors.Is(err, apperr.ErrInvalidAmount) {
			t.Errorf("amount %d: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestCompleteGoal_HealsStaleMarker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	goal := e.create(t, "-[0] Read (0/5)")
	// A record from an earlier run whose marker update was lost.
	e.create(t, "✅ 完成目标：Read，当前进度：2/5\n📝 原始目标：[["+goal.ID+"]]")

	res, err := e.tracker.CompleteGoal(ctx, goal.ID, 1, now)
	if err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	if res.Goal.Content != "-[0] Read (3/5)" {
		t.Errorf("goal = %q, want marker healed to 3/5", res.Goal.Content)
	}
	if res.Stats.ActualCurrent != 2 {
		t.Errorf("actual current = %d, want 2", res.Stats.ActualCurrent)
	}
}

type failingUpdates struct {
	memostore.Store
}

func (failingUpdates) UpdateNote(context.Context, string, string, string) (models.Note, error) {
	return models.Note{}, errors.New("disk full")
}

func TestCompleteGoal_RecordSurvivesMarkerFailure(t *testing.T) {
	base := newEnv(t)
	e := newEnvWithStore(base.store, func(s memostore.Store) memostore.Store { return failingUpdates{s} })
	ctx := context.Background()
	goal := e.create(t, "-[0] Read (0/5)")

	if _, err := e.tracker.CompleteGoal(ctx, goal.ID, 1, now); err == nil {
		t.Fatal("expected marker update failure")
	}
	notes, _ := e.store.ListNotes(ctx)
	records := marker.FindCompletionRecords(goal, notes, marker.KindGoal)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	// Once updates work again the next completion catches the marker up.
	healthy := newEnvWithStore(base.store)
	res, err := healthy.tracker.CompleteGoal(ctx, goal.ID, 1, now)
	if err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	if res.Goal.Content != "-[0] Read (2/5)" {
		t.Errorf("goal = %q", res.Goal.Content)
	}
}

// editedDuringUpdate applies an outside edit just before the first marker
// update, so that update fails its checksum check.
type editedDuringUpdate struct {
	memostore.Store
	edit string
	done bool
}

func (s *editedDuringUpdate) UpdateNote(ctx context.Context, id, content, ifMatch string) (models.Note, error) {
	if !s.done {
		s.done = true
		if _, err := s.Store.UpdateNote(ctx, id, s.edit, ""); err != nil {
			return models.Note{}, err
		}
		return models.Note{}, fmt.Errorf("edited meanwhile: %w", apperr.ErrConflict)
	}
	return s.Store.UpdateNote(ctx, id, content, ifMatch)
}

func TestCompleteGoal_RetryKeepsAdvancedMarker(t *testing.T) {
	base := newEnv(t)
	wrapped := &editedDuringUpdate{edit: "-[0] Read (7/10)"}
	e := newEnvWithStore(base.store, func(s memostore.Store) memostore.Store {
		wrapped.Store = s
		return wrapped
	})
	ctx := context.Background()
	goal := e.create(t, "-[0] Read (2/10)")

	res, err := e.tracker.CompleteGoal(ctx, goal.ID, 1, now)
	if err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	if res.Goal.Content != "-[0] Read (7/10)" {
		t.Errorf("goal = %q, want marker kept at 7/10", res.Goal.Content)
	}
	got, _ := e.store.GetNote(ctx, goal.ID)
	if got.Content != "-[0] Read (7/10)" {
		t.Errorf("stored goal = %q, want 7/10", got.Content)
	}
}

func TestCompleteGoal_RetryAppliesProgressAfterUnrelatedEdit(t *testing.T) {
	base := newEnv(t)
	wrapped := &editedDuringUpdate{edit: "-[0] Read (2/10)\nmore notes"}
	e := newEnvWithStore(base.store, func(s memostore.Store) memostore.Store {
		wrapped.Store = s
		return wrapped
	})
	goal := e.create(t, "-[0] Read (2/10)")

	res, err := e.tracker.CompleteGoal(context.Background(), goal.ID, 1, now)
	if err != nil {
		t.Fatalf("CompleteGoal: %v", err)
	}
	if res.Goal.Content != "-[0] Read (3/10)\nmore notes" {
		t.Errorf("goal = %q, want 3/10 with the outside edit kept", res.Goal.Content)
	}
}

// markerlessUpdates reports the updated memo without its goal line, as if
// the marker had been removed by the time the write landed.
type markerlessUpdates struct {
	memostore.Store
}

func (s markerlessUpdates) UpdateNote(ctx context.Context, id, content, ifMatch string) (models.Note, error) {
	n, err := s.Store.UpdateNote(ctx, id, content, ifMatch)
	n.Content = "goal removed"
	return n, err
}

func TestCompleteGoal_LostMarkerIsAnError(t *testing.T) {
	base := newEnv(t)
	e := newEnvWithStore(base.store, func(s memostore.Store) memostore.Store { return markerlessUpdates{s} })
	goal := e.create(t, "-[0] Read (0/5)")

	_, err := e.tracker.CompleteGoal(context.Background(), goal.ID, 1, now)
	if !errors.Is(err, apperr.ErrMarkerNotFound) {
		t.Errorf("err = %v, want ErrMarkerNotFound", err)
	}
	if e.metrics.failures["complete_goal"] != 1 {
		t.Errorf("failures = %v, want one complete_goal failure", e.metrics.failures)
	}
}

func TestCompleteGoal_ConcurrentIncrementsAreNotLost(t *testing.T) {
	e := newEnv(t)
	goal := e.create(t, "-[0] Push-ups (0/10)")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.tracker.CompleteGoal(context.Background(), goal.ID, 1, now); err != nil {
				t.Errorf("CompleteGoal: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := e.store.GetNote(context.Background(), goal.ID)
	if got.Content != "-[0] Push-ups (5/10)" {
		t.Errorf("goal = %q, want 5/10", got.Content)
	}
	stats, err := e.tracker.GoalStats(context.Background(), goal.ID, now)
	if err != nil {
		t.Fatalf("GoalStats: %v", err)
	}
	if stats.ActualCurrent != 5 || stats.Progress != 50 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCreateGoal(t *testing.T) {
	e := newEnv(t)
	n, err := e.tracker.CreateGoal(context.Background(), "  Learn Go ", 12)
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	info, ok := marker.ExtractGoalInfo(n)
	if !ok || info.Title != "Learn Go" || info.Target != 12 || info.Current != 0 {
		t.Errorf("info = %+v, %v", info, ok)
	}
	if _, err := e.tracker.CreateGoal(context.Background(), "x", 0); !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
	if _, err := e.tracker.CreateGoal(context.Background(), " ", 3); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestStatsRequireMarkers(t *testing.T) {
	e := newEnv(t)
	plain := e.create(t, "nothing here")
	if _, err := e.tracker.CheckinStats(context.Background(), plain.ID, now); !errors.Is(err, apperr.ErrMarkerNotFound) {
		t.Errorf("checkin stats err = %v", err)
	}
	if _, err := e.tracker.GoalStats(context.Background(), plain.ID, now); !errors.Is(err, apperr.ErrMarkerNotFound) {
		t.Errorf("goal stats err = %v", err)
	}
}

func TestSchedules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.create(t, "{} 2025/09/01 10:00 Conference")
	e.create(t, "-{} 2025/08/06 15:00 Dentist")
	e.create(t, "{} 2025/08/10 09:00:30 Trip")
	e.create(t, "{} 2025/13/01 10:00 Broken date")

	all, _ := e.tracker.Schedules(ctx, ScheduleAll, "", now)
	if len(all) != 3 || all[0].Title != "Dentist" || all[2].Title != "Conference" {
		t.Fatalf("all = %+v", all)
	}
	today, _ := e.tracker.Schedules(ctx, ScheduleToday, "", now)
	if len(today) != 1 || today[0].DateTime != "2025-08-06 15:00:00" {
		t.Errorf("today = %+v", today)
	}
	upcoming, _ := e.tracker.Schedules(ctx, ScheduleUpcoming, "", now)
	if len(upcoming) != 2 || upcoming[1].Title != "Trip" {
		t.Errorf("upcoming = %+v", upcoming)
	}
	onDate, _ := e.tracker.Schedules(ctx, ScheduleDate, "2025-09-01", now)
	if len(onDate) != 1 || onDate[0].Title != "Conference" {
		t.Errorf("date = %+v", onDate)
	}
	none, _ := e.tracker.Schedules(ctx, ScheduleDate, "2030-01-01", now)
	if none == nil || len(none) != 0 {
		t.Errorf("empty filter = %#v, want empty slice", none)
	}
	if ParseScheduleFilter("bogus") != ScheduleAll || ParseScheduleFilter("today") != ScheduleToday {
		t.Error("ParseScheduleFilter mismatch")
	}
}

func TestTaskEdits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n := e.create(t, "- [ ] Ship release\n  - [x] Write notes\n  - [ ] Tag build")

	toggled, err := e.tracker.ToggleTask(ctx, n.ID, 2, "Tag build")
	if err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}
	if !strings.HasSuffix(toggled.Content, "  - [x] Tag build") {
		t.Errorf("toggled = %q", toggled.Content)
	}
	if _, err := e.tracker.ToggleTask(ctx, n.ID, 2, "Other text"); !errors.Is(err, apperr.ErrMarkerNotFound) {
		t.Errorf("mismatched text err = %v", err)
	}

	prioritised, err := e.tracker.SetPriority(ctx, n.ID, marker.PriorityHigh)
	if err != nil {
		t.Fatalf("SetPriority: %v", err)
	}
	if marker.ExtractPriority(prioritised) != marker.PriorityHigh {
		t.Errorf("priority content = %q", prioritised.Content)
	}

	withSub, err := e.tracker.AddSubtask(ctx, n.ID, "Announce")
	if err != nil {
		t.Fatalf("AddSubtask: %v", err)
	}
	list, _ := e.tracker.Tasks(ctx, n.ID)
	done, total := list.Progress()
	if done != 2 || total != 3 || list.Subtasks[2].Text != "Announce" {
		t.Errorf("tasks = %+v (content %q)", list, withSub.Content)
	}
	if e.metrics.tasks["toggle"] != 1 || e.metrics.tasks["priority"] != 1 || e.metrics.tasks["subtask"] != 1 {
		t.Errorf("task metrics = %v", e.metrics.tasks)
	}
	if e.events.count("task.updated") != 3 {
		t.Errorf("task events = %d", e.events.count("task.updated"))
	}

	plain := e.create(t, "not a task")
	if _, err := e.tracker.AddSubtask(ctx, plain.ID, "x"); !errors.Is(err, apperr.ErrMarkerNotFound) {
		t.Errorf("subtask on plain memo err = %v", err)
	}
}

func TestTasksByPriority(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	high := e.create(t, "- [ ] !!! Fix outage")
	low := e.create(t, "- [ ] ! Water plants")
	none := e.create(t, "- [ ] Read mail")
	e.create(t, "no tasks at all")

	list, err := e.tracker.TasksByPriority(ctx)
	if err != nil {
		t.Fatalf("TasksByPriority: %v", err)
	}
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	want := fmt.Sprint([]string{high.ID, low.ID, none.ID})
	if fmt.Sprint(ids) != want {
		t.Errorf("order = %v, want %v", ids, want)
	}
	if list[0].Priority != marker.PriorityHigh || list[0].Tasks.Main == nil || list[0].Tasks.Main.Text != "!!! Fix outage" {
		t.Errorf("first = %+v", list[0])
	}
}
