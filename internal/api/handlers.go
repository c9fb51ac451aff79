package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memolog/internal/checksum"
	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	memos   *memostore.Service
	tracker *tracker.Service
	now     func() time.Time
}

// NewHandler creates a new Handler. A nil now means time.Now.
func NewHandler(memos *memostore.Service, tr *tracker.Service, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{memos: memos, tracker: tr, now: now}
}

// memoID maps the wildcard of /<resource>/* onto a memo id. The URL carries
// the part after "memos/", so /memos/abc addresses "memos/abc". Encoded
// slashes are accepted.
func memoID(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return memostore.IDPrefix + raw
}

func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := memoID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("memo id required"))
		return "", false
	}
	return id, true
}

// ListMemos handles GET /memos.
//
//	@Summary		List memos, newest first
//	@Tags			memos
//	@Produce		json
//	@Param			limit			query		int		false	"Page size"
//	@Param			offset			query		int		false	"Page offset"
//	@Param			tag				query		string	false	"Filter by tag"
//	@Param			hide_records	query		bool	false	"Drop check-in and goal records"
//	@Success		200				{object}	MemoListResponse
//	@Security		BearerAuth
//	@Router			/memos [get]
func (h *Handler) ListMemos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	hide, _ := strconv.ParseBool(q.Get("hide_records"))

	items, total, err := h.memos.Page(r.Context(), memostore.Query{
		Limit:       limit,
		Offset:      offset,
		Tag:         q.Get("tag"),
		HideRecords: hide,
	})
	if err != nil {
		writeError(w, "list memos", err)
		return
	}
	if items == nil {
		items = []models.Note{}
	}
	writeJSON(w, http.StatusOK, MemoListResponse{Memos: items, Total: total})
}

// GetMemo handles GET /memos/*. The ETag header carries the file checksum.
//
//	@Summary		Get a memo with its back-references
//	@Tags			memos
//	@Produce		json
//	@Success		200		{object}	MemoDetail
//	@Failure		404		{object}	errResponse
//	@Router			/memos/{id} [get]
func (h *Handler) GetMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	n, err := h.memos.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get memo", err)
		return
	}
	backlinks, err := h.memos.Backlinks(r.Context(), id)
	if err != nil {
		writeError(w, "get memo", err)
		return
	}
	if backlinks == nil {
		backlinks = []string{}
	}
	w.Header().Set("ETag", checksum.ETag(n.Checksum))
	writeJSON(w, http.StatusOK, MemoDetail{Note: n, Backlinks: backlinks})
}

// CreateMemo handles POST /memos.
//
//	@Summary		Create a memo
//	@Tags			memos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateMemoRequest	true	"Memo"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Router			/memos [post]
func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vis := req.Visibility
	if vis == "" {
		vis = models.VisibilityPrivate
	}
	n, err := h.memos.CreateNote(r.Context(), req.Content, vis)
	if err != nil {
		writeError(w, "create memo", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(n.Checksum))
	writeJSON(w, http.StatusCreated, n)
}

// UpdateMemo handles PUT /memos/*. An If-Match header enables the
// optimistic concurrency check.
func (h *Handler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req UpdateMemoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.memos.UpdateNote(r.Context(), id, req.Content, checksum.FromIfMatch(r.Header.Get("If-Match")))
	if err != nil {
		writeError(w, "update memo", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(n.Checksum))
	writeJSON(w, http.StatusOK, n)
}

// DeleteMemo handles DELETE /memos/*.
func (h *Handler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	if err := h.memos.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete memo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search?q=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	hits, err := h.memos.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	out := make([]SearchResult, len(hits))
	for i, hit := range hits {
		out[i] = SearchResult{ID: hit.ID, Title: hit.Title, Snippet: hit.Snippet}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
