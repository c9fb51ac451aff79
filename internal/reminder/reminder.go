// Package reminder periodically announces schedules that are about to start.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/sse"
)

const (
	// DefaultSpec runs the scan once a minute.
	DefaultSpec = "@every 1m"
	// DefaultWindow is how far ahead a schedule counts as due.
	DefaultWindow = 15 * time.Minute
)

// ScheduleSource lists schedules strictly inside (from, to).
type ScheduleSource interface {
	SchedulesBetween(ctx context.Context, from, to time.Time) ([]marker.Schedule, error)
}

// Publisher receives schedule.due events.
type Publisher interface {
	Emit(eventType string, data any)
}

// Counter counts sent reminders.
type Counter interface {
	ReminderSent()
}

// Due is the payload of a schedule.due event.
type Due struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	DateTime     string `json:"datetime"`
	MinutesUntil int    `json:"minutes_until"`
}

// Reminder scans for schedules starting within Window and publishes each
// occurrence once.
type Reminder struct {
	source  ScheduleSource
	events  Publisher
	counter Counter
	logger  *slog.Logger
	window  time.Duration
	clock   func() time.Time
	loc     *time.Location

	mu   sync.Mutex
	sent map[string]time.Time
}

// Option configures a Reminder.
type Option func(*Reminder)

// WithWindow sets how far ahead to look.
func WithWindow(d time.Duration) Option {
	return func(r *Reminder) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Reminder) { r.clock = clock }
}

// WithCounter counts published reminders.
func WithCounter(c Counter) Option {
	return func(r *Reminder) { r.counter = c }
}

// WithLocation sets the zone cron specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(r *Reminder) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// New creates a Reminder.
func New(source ScheduleSource, events Publisher, logger *slog.Logger, opts ...Option) *Reminder {
	r := &Reminder{
		source: source,
		events: events,
		logger: logger,
		window: DefaultWindow,
		clock:  time.Now,
		loc:    time.Local,
		sent:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run schedules Scan with the cron spec and blocks until ctx is cancelled.
// Overlapping runs are skipped and panics are recovered.
func (r *Reminder) Run(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	logger := cronLogger{r.logger}
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.Scan(ctx); err != nil {
			r.logger.Warn("reminder: scan failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("reminder: parse spec %q: %w", spec, err)
	}

	r.logger.Info("reminder: started", slog.String("spec", spec), slog.Duration("window", r.window))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("reminder: stopped")
	return nil
}

// Scan publishes schedule.due for every schedule starting within the window
// that has not been announced yet, and returns how many it published.
func (r *Reminder) Scan(ctx context.Context) (int, error) {
	now := r.clock()
	schedules, err := r.source.SchedulesBetween(ctx, now, now.Add(r.window))
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, at := range r.sent {
		if !at.After(now) {
			delete(r.sent, key)
		}
	}

	published := 0
	for _, s := range schedules {
		key := s.ID + "@" + s.DateTime
		if _, done := r.sent[key]; done {
			continue
		}
		r.sent[key] = s.At
		r.events.Emit(sse.TypeScheduleDue, Due{
			ID:           s.ID,
			Title:        s.Title,
			DateTime:     s.DateTime,
			MinutesUntil: int(s.At.Sub(now).Round(time.Minute) / time.Minute),
		})
		if r.counter != nil {
			r.counter.ReminderSent()
		}
		r.logger.Info("reminder: schedule due", slog.String("id", s.ID), slog.String("datetime", s.DateTime))
		published++
	}
	return published, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
