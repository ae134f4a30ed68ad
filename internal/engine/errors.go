package engine

import (
	"errors"
	"fmt"

	"pressflow/internal/repo"
)

var (
	ErrNotFound           = repo.ErrNotFound
	ErrNoValidFields      = errors.New("no valid fields to update")
	ErrAlreadyPublished   = errors.New("release already published")
	ErrRewriteAlreadyUsed = errors.New("panel rewrite already used")
	ErrRewriteNotReady    = errors.New("rewrite requires a draft and panel feedback")
	ErrMissingContent     = errors.New("release has no content")
	// ErrConflict means another writer changed the release first.
	ErrConflict = errors.New("release changed concurrently; re-read and retry")
)

// InvalidFieldError reports a value that cannot be stored in a field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError means a required collaborator is not configured.
type UnavailableError struct {
	Collaborator string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s not configured", e.Collaborator)
}
