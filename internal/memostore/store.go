// Package memostore persists memos as vault files, keeps the SQLite index in
// step with every write, and serves the in-memory corpus that the tracker
// scans.
package memostore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/memolog/internal/apperr"
	"github.com/starford/memolog/internal/checksum"
	"github.com/starford/memolog/internal/index"
	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/parser"
	"github.com/starford/memolog/internal/storage"
)

// IDPrefix is the namespace of every memo id.
const IDPrefix = "memos/"

// Store is the note-store the tracker works against.
type Store interface {
	CreateNote(ctx context.Context, content string, visibility models.Visibility) (models.Note, error)
	UpdateNote(ctx context.Context, id, content, ifMatch string) (models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	GetNote(ctx context.Context, id string) (models.Note, error)
	ListNotes(ctx context.Context) ([]models.Note, error)
}

// Notifier receives memo change events.
type Notifier interface {
	PublishMemoEvent(kind, id string)
}

// Query selects a page of memos.
type Query struct {
	Limit       int
	Offset      int
	Tag         string
	HideRecords bool
}

// Service is the vault-backed Store.
type Service struct {
	store    storage.Provider
	db       index.MemoIndex
	cache    *Cache
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string
}

var _ Store = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithNotifier routes memo change events to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source used for new memos.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides memo id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a memo service over the vault and index.
func NewService(store storage.Provider, db index.MemoIndex, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		logger: logger,
		clock:  time.Now,
		newID:  func() string { return IDPrefix + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = NewCache(s.loadAll)
	return s
}

// Cache exposes the corpus snapshot so the watcher can invalidate it.
func (s *Service) Cache() *Cache { return s.cache }

// CreateNote writes a new memo with a fresh id.
func (s *Service) CreateNote(ctx context.Context, content string, visibility models.Visibility) (models.Note, error) {
	if err := ctx.Err(); err != nil {
		return models.Note{}, err
	}
	now := s.clock()
	n := models.Note{
		ID:          s.newID(),
		Content:     content,
		Visibility:  models.ParseVisibility(string(visibility)),
		CreatedAt:   now,
		DisplayTime: now,
	}
	path := storage.PathForID(n.ID)
	if _, err := s.store.Read(path); err == nil {
		return models.Note{}, fmt.Errorf("memostore: create %s: %w", n.ID, apperr.ErrAlreadyExists)
	}
	n, err := s.write(n)
	if err != nil {
		return models.Note{}, fmt.Errorf("memostore: create: %w", err)
	}
	s.changed(index.EventCreated, n.ID)
	return n, nil
}

// UpdateNote replaces the body of a memo. A non-empty ifMatch must equal the
// checksum of the file on disk.
func (s *Service) UpdateNote(ctx context.Context, id, content, ifMatch string) (models.Note, error) {
	if err := ctx.Err(); err != nil {
		return models.Note{}, err
	}
	existing, data, err := s.read(id)
	if err != nil {
		return models.Note{}, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return models.Note{}, fmt.Errorf("memostore: update %s: %w", id, apperr.ErrConflict)
	}
	existing.Content = content
	n, err := s.write(existing)
	if err != nil {
		return models.Note{}, fmt.Errorf("memostore: update %s: %w", id, err)
	}
	s.changed(index.EventUpdated, id)
	return n, nil
}

// DeleteNote removes a memo from the vault and the index.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Delete(storage.PathForID(id)); err != nil {
		return fmt.Errorf("memostore: delete %s: %w", id, err)
	}
	if err := s.db.DeleteNote(id); err != nil {
		return fmt.Errorf("memostore: unindex %s: %w", id, err)
	}
	s.changed(index.EventDeleted, id)
	return nil
}

// GetNote reads a memo straight from the vault.
func (s *Service) GetNote(ctx context.Context, id string) (models.Note, error) {
	if err := ctx.Err(); err != nil {
		return models.Note{}, err
	}
	n, _, err := s.read(id)
	return n, err
}

// ListNotes returns every memo, newest display time first.
func (s *Service) ListNotes(ctx context.Context) ([]models.Note, error) {
	return s.cache.Notes(ctx)
}

// Page returns one page of memos and the number of memos matching q.
// HideRecords drops check-in and goal completion records.
func (s *Service) Page(ctx context.Context, q Query) ([]models.Note, int, error) {
	if !q.HideRecords {
		rows, total, err := s.db.ListNotes(q.Limit, q.Offset, q.Tag)
		if err != nil {
			return nil, 0, err
		}
		out := make([]models.Note, len(rows))
		for i, r := range rows {
			out[i] = r.Note()
		}
		return out, total, nil
	}

	all, err := s.cache.Notes(ctx)
	if err != nil {
		return nil, 0, err
	}
	var kept []models.Note
	for _, n := range all {
		if marker.IsCompletionRecord(n) || (q.Tag != "" && !hasTag(n, q.Tag)) {
			continue
		}
		kept = append(kept, n)
	}
	total := len(kept)
	if q.Offset > 0 {
		kept = kept[min(q.Offset, len(kept)):]
	}
	if q.Limit > 0 && len(kept) > q.Limit {
		kept = kept[:q.Limit]
	}
	return kept, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns the ids of memos that reference id.
func (s *Service) Backlinks(_ context.Context, id string) ([]string, error) {
	return s.db.Backlinks(id)
}

// RecordCandidates narrows the corpus to memos that could be completion
// records of parent: indexed back-references, plus (for goals) memos naming a
// goal completion at all, since legacy records match by title alone.
func (s *Service) RecordCandidates(ctx context.Context, parent models.Note, kind marker.Kind) ([]models.Note, error) {
	ids, err := s.db.Backlinks(parent.ID)
	if err != nil {
		return nil, err
	}
	linked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		linked[id] = struct{}{}
	}
	all, err := s.cache.Notes(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Note
	for _, n := range all {
		if _, ok := linked[n.ID]; ok {
			out = append(out, n)
			continue
		}
		if kind == marker.KindGoal && strings.Contains(n.Content, "完成目标") {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Service) read(id string) (models.Note, []byte, error) {
	data, err := s.store.Read(storage.PathForID(id))
	if err != nil {
		return models.Note{}, nil, fmt.Errorf("memostore: get %s: %w", id, err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return models.Note{}, nil, fmt.Errorf("memostore: parse %s: %w", id, err)
	}
	n := res.Note(id)
	n.Checksum = checksum.Sum(data)
	return n, data, nil
}

// write encodes n, stores it and upserts the index row. The returned note
// carries the new checksum and tags.
func (s *Service) write(n models.Note) (models.Note, error) {
	data, err := parser.Encode(n)
	if err != nil {
		return models.Note{}, err
	}
	if err := s.store.Write(storage.PathForID(n.ID), data); err != nil {
		return models.Note{}, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return models.Note{}, err
	}
	out := res.Note(n.ID)
	out.Checksum = checksum.Sum(data)
	err = s.db.UpsertNote(index.NoteRow{
		ID:          out.ID,
		Title:       res.Title,
		Checksum:    out.Checksum,
		Tags:        out.Tags,
		Body:        out.Content,
		Visibility:  out.Visibility,
		CreatedAt:   out.CreatedAt,
		DisplayTime: out.DisplayTime,
	}, res.Links)
	if err != nil {
		return models.Note{}, err
	}
	return out, nil
}

func (s *Service) changed(kind, id string) {
	s.cache.Invalidate()
	if s.notifier != nil {
		s.notifier.PublishMemoEvent(kind, id)
	}
	s.logger.Debug("memostore: memo changed", slog.String("id", id), slog.String("op", kind))
}

func (s *Service) loadAll(_ context.Context) ([]models.Note, error) {
	rows, _, err := s.db.ListNotes(0, 0, "")
	if err != nil {
		return nil, fmt.Errorf("memostore: load corpus: %w", err)
	}
	out := make([]models.Note, len(rows))
	for i, r := range rows {
		out[i] = r.Note()
	}
	return out, nil
}

func hasTag(n models.Note, tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
