// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrMarkerNotFound = errors.New("marker not found")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrGoalCompleted  = errors.New("goal already completed")
	ErrInvalidInput   = errors.New("invalid input")
)
