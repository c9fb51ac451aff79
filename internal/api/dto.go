package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/models"
)

// CreateMemoRequest is the body of POST /memos.
type CreateMemoRequest struct {
	Content    string            `json:"content"`
	Visibility models.Visibility `json:"visibility,omitempty"`
}

func (r *CreateMemoRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Visibility, validation.In(
			models.VisibilityPrivate, models.VisibilityProtected, models.VisibilityPublic)),
	)
}

// UpdateMemoRequest is the body of PUT /memos/{id}.
type UpdateMemoRequest struct {
	Content string `json:"content"`
}

func (r *UpdateMemoRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required),
	)
}

// CreateGoalRequest is the body of POST /goals.
type CreateGoalRequest struct {
	Title  string `json:"title"`
	Target int    `json:"target"`
}

func (r *CreateGoalRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Target, validation.Required, validation.Min(1)),
	)
}

// CompleteGoalRequest is the body of POST /goals/{id}. Amount defaults to 1.
type CompleteGoalRequest struct {
	Amount int `json:"amount"`
}

func (r *CompleteGoalRequest) Validate() error {
	if r.Amount == 0 {
		r.Amount = 1
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount, validation.Min(1)),
	)
}

// ToggleTaskRequest is the body of PATCH /tasks/{id}.
type ToggleTaskRequest struct {
	Line int    `json:"line"`
	Text string `json:"text,omitempty"`
}

func (r *ToggleTaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Line, validation.Min(0)),
	)
}

// PriorityRequest is the body of PUT /tasks/{id}.
type PriorityRequest struct {
	Priority marker.Priority `json:"priority"`
}

func (r *PriorityRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Priority, validation.In(
			marker.PriorityNone, marker.PriorityLow, marker.PriorityMedium, marker.PriorityHigh)),
	)
}

// SubtaskRequest is the body of POST /tasks/{id}.
type SubtaskRequest struct {
	Text string `json:"text"`
}

func (r *SubtaskRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
	)
}

// MemoDetail is a memo with the ids of memos referencing it.
type MemoDetail struct {
	models.Note
	Backlinks []string `json:"backlinks"`
}

// MemoListResponse wraps a page of memos.
type MemoListResponse struct {
	Memos []models.Note `json:"memos"`
	Total int           `json:"total"`
}

// SearchResult is a single search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
