package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/tracker"
)

// Config carries the router's collaborators and auth settings.
type Config struct {
	Memos       *memostore.Service
	Tracker     *tracker.Service
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg Config) chi.Router {
	h := NewHandler(cfg.Memos, cfg.Tracker, cfg.Now)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Memos CRUD.
	r.Get("/memos", h.ListMemos)
	r.Post("/memos", h.CreateMemo)
	r.Get("/memos/*", h.GetMemo)
	r.Put("/memos/*", h.UpdateMemo)
	r.Delete("/memos/*", h.DeleteMemo)

	r.Get("/search", h.Search)

	// Check-ins and goals.
	r.Get("/checkins/*", h.CheckinStats)
	r.Post("/checkins/*", h.CheckIn)
	r.Post("/goals", h.CreateGoal)
	r.Get("/goals/*", h.GoalStats)
	r.Post("/goals/*", h.CompleteGoal)

	// Tasks.
	r.Get("/tasks", h.TasksByPriority)
	r.Get("/tasks/*", h.Tasks)
	r.Patch("/tasks/*", h.ToggleTask)
	r.Put("/tasks/*", h.SetPriority)
	r.Post("/tasks/*", h.AddSubtask)

	r.Get("/schedules", h.Schedules)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
