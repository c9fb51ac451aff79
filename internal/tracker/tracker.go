// Package tracker runs the user actions on marker memos: check-ins, goal
// completions, task edits, and the schedule and statistics views.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/models"
)

// RecordSource narrows the corpus to likely completion records. Stores that
// do not implement it are scanned in full.
type RecordSource interface {
	RecordCandidates(ctx context.Context, parent models.Note, kind marker.Kind) ([]models.Note, error)
}

// Publisher receives tracker events.
type Publisher interface {
	Emit(eventType string, data any)
}

// Metrics counts tracker actions.
type Metrics interface {
	CheckinRecorded()
	GoalProgressed(units int)
	TaskChanged(kind string)
	Failed(action string)
}

// Service runs tracker actions against a memo store.
type Service struct {
	store   memostore.Store
	events  Publisher
	metrics Metrics
	logger  *slog.Logger
	loc     *time.Location

	locks keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends tracker events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics counts actions in m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLocation sets the zone that decides what "today" means.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a tracker over store.
func NewService(store memostore.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		events:  nopPublisher{},
		metrics: nopMetrics{},
		logger:  logger,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for day boundaries.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) candidates(ctx context.Context, parent models.Note, kind marker.Kind) ([]models.Note, error) {
	if src, ok := s.store.(RecordSource); ok {
		return src.RecordCandidates(ctx, parent, kind)
	}
	return s.store.ListNotes(ctx)
}

func (s *Service) fail(action string, err error) error {
	s.metrics.Failed(action)
	s.logger.Warn("tracker: action failed", slog.String("action", action), slog.String("error", err.Error()))
	return err
}

// keyedMutex serialises actions on the same parent memo so two rapid
// increments cannot read the same progress.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

type nopPublisher struct{}

func (nopPublisher) Emit(string, any) {}

type nopMetrics struct{}

func (nopMetrics) CheckinRecorded() {}
func (nopMetrics) GoalProgressed(int) {}
func (nopMetrics) TaskChanged(string) {}
func (nopMetrics) Failed(string) {}
