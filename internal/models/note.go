// Package models defines the domain types for memolog.
package models

import "time"

// Visibility controls who may see a memo.
type Visibility string

const (
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
	VisibilityPublic    Visibility = "PUBLIC"
)

// ParseVisibility maps a string to a Visibility, defaulting to PRIVATE for
// empty or unknown values.
func ParseVisibility(s string) Visibility {
	switch Visibility(s) {
	case VisibilityPrivate, VisibilityProtected, VisibilityPublic:
		return Visibility(s)
	default:
		return VisibilityPrivate
	}
}

// Note is a memo as stored in the vault. Content is the only carrier of
// goal / check-in / schedule / task markers.
type Note struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Visibility  Visibility `json:"visibility"`
	Tags        []string   `json:"tags"`
	Checksum    string     `json:"checksum,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DisplayTime time.Time  `json:"display_time"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link represents a back-reference from one memo to another.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"` // "wikilink" or "mention"
}
