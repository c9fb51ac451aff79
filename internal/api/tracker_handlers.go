package api

import (
	"net/http"

	"github.com/starford/memolog/internal/tracker"
)

// CheckinStats handles GET /checkins/*.
//
//	@Summary		Check-in statistics of a memo
//	@Tags			checkins
//	@Produce		json
//	@Success		200		{object}	marker.CheckinStats
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Router			/checkins/{id} [get]
func (h *Handler) CheckinStats(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	stats, err := h.tracker.CheckinStats(r.Context(), id, h.now())
	if err != nil {
		writeError(w, "checkin stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CheckIn handles POST /checkins/*.
//
//	@Summary		Record a check-in against a memo
//	@Tags			checkins
//	@Produce		json
//	@Success		201		{object}	tracker.CheckinResult
//	@Failure		422		{object}	errResponse
//	@Router			/checkins/{id} [post]
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	res, err := h.tracker.CheckIn(r.Context(), id, h.now())
	if err != nil {
		writeError(w, "check in", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CreateGoal handles POST /goals.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.tracker.CreateGoal(r.Context(), req.Title, req.Target)
	if err != nil {
		writeError(w, "create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// GoalStats handles GET /goals/*.
func (h *Handler) GoalStats(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	stats, err := h.tracker.GoalStats(r.Context(), id, h.now())
	if err != nil {
		writeError(w, "goal stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CompleteGoal handles POST /goals/*. An empty body completes one unit.
//
//	@Summary		Advance a goal
//	@Tags			goals
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CompleteGoalRequest	false	"Amount"
//	@Success		201		{object}	tracker.GoalResult
//	@Failure		409		{object}	errResponse
//	@Router			/goals/{id} [post]
func (h *Handler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	req := CompleteGoalRequest{Amount: 1}
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	res, err := h.tracker.CompleteGoal(r.Context(), id, req.Amount, h.now())
	if err != nil {
		writeError(w, "complete goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// TasksByPriority handles GET /tasks.
func (h *Handler) TasksByPriority(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tracker.TasksByPriority(r.Context())
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []tracker.TaskSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// Tasks handles GET /tasks/*.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	list, err := h.tracker.Tasks(r.Context(), id)
	if err != nil {
		writeError(w, "tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ToggleTask handles PATCH /tasks/*.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req ToggleTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.tracker.ToggleTask(r.Context(), id, req.Line, req.Text)
	if err != nil {
		writeError(w, "toggle task", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// SetPriority handles PUT /tasks/*.
func (h *Handler) SetPriority(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req PriorityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.tracker.SetPriority(r.Context(), id, req.Priority)
	if err != nil {
		writeError(w, "set priority", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// AddSubtask handles POST /tasks/*.
func (h *Handler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req SubtaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.tracker.AddSubtask(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, "add subtask", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Schedules handles GET /schedules?filter=all|today|date|upcoming&date=YYYY-MM-DD.
func (h *Handler) Schedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := tracker.ParseScheduleFilter(q.Get("filter"))
	date := q.Get("date")
	if filter == tracker.ScheduleDate && date == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'date' is required"))
		return
	}
	list, err := h.tracker.Schedules(r.Context(), filter, date, h.now())
	if err != nil {
		writeError(w, "schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": list})
}
