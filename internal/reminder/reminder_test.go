package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/models"
)

var now = time.Date(2025, 8, 6, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	notes []models.Note
	err   error
}

func (f *fakeSource) SchedulesBetween(_ context.Context, from, to time.Time) ([]marker.Schedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return marker.SchedulesBetween(marker.ExtractSchedules(f.notes, time.UTC), from, to), nil
}

type captured struct {
	mu     sync.Mutex
	events []Due
	sent   int
}

func (c *captured) Emit(eventType string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if eventType == "schedule.due" {
		c.events = append(c.events, data.(Due))
	}
}

func (c *captured) ReminderSent() {
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
}

func quiet() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestScanPublishesOncePerOccurrence(t *testing.T) {
	src := &fakeSource{notes: []models.Note{
		{ID: "memos/soon", Content: "{} 2025/08/06 09:10 Standup"},
		{ID: "memos/later", Content: "{} 2025/08/06 12:00 Lunch"},
		{ID: "memos/past", Content: "{} 2025/08/06 08:00 Breakfast"},
	}}
	clock := now
	out := &captured{}
	r := New(src, out, quiet(), WithWindow(15*time.Minute), WithCounter(out),
		WithClock(func() time.Time { return clock }))

	n, err := r.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 || len(out.events) != 1 {
		t.Fatalf("published = %d, events = %+v", n, out.events)
	}
	due := out.events[0]
	if due.ID != "memos/soon" || due.Title != "Standup" || due.MinutesUntil != 10 {
		t.Errorf("due = %+v", due)
	}

	clock = now.Add(time.Minute)
	if n, _ := r.Scan(context.Background()); n != 0 {
		t.Errorf("second scan published %d, want 0", n)
	}
	if out.sent != 1 {
		t.Errorf("counter = %d, want 1", out.sent)
	}
}

func TestScanAnnouncesRescheduledOccurrence(t *testing.T) {
	src := &fakeSource{notes: []models.Note{{ID: "memos/m", Content: "{} 2025/08/06 09:05 Call"}}}
	out := &captured{}
	r := New(src, out, quiet(), WithClock(func() time.Time { return now }))

	_, _ = r.Scan(context.Background())
	src.notes[0].Content = "{} 2025/08/06 09:12 Call"
	if n, _ := r.Scan(context.Background()); n != 1 {
		t.Errorf("moved schedule published %d, want 1", n)
	}
}

func TestScanPropagatesSourceError(t *testing.T) {
	r := New(&fakeSource{err: errors.New("index down")}, &captured{}, quiet())
	if _, err := r.Scan(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestRunRejectsBadSpec(t *testing.T) {
	r := New(&fakeSource{}, &captured{}, quiet())
	if err := r.Run(context.Background(), "not a spec"); err == nil {
		t.Error("expected spec error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := New(&fakeSource{}, &captured{}, quiet())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, "@every 1h") }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
