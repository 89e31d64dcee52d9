// Package remote integrates with a repository hosting service for
// publishing change requests.
package remote

import (
	"context"
	"errors"
)

// ErrNotFound indicates the repository or target branch does not exist
// on the host.
var ErrNotFound = errors.New("remote: not found")

// ErrAuthFailed indicates the host rejected the credentials.
var ErrAuthFailed = errors.New("remote: authentication failed")

// ErrRateLimited indicates the host throttled the request.
var ErrRateLimited = errors.New("remote: rate limited")

// ChangeRequest describes a proposed change to publish.
type ChangeRequest struct {
	// Branch is the branch holding the change.
	Branch string `json:"branch"`
	// Target is the branch the change should merge into.
	Target string `json:"target"`
	// Title is the one-line summary.
	Title string `json:"title"`
	// Description is the change request body.
	Description string `json:"description"`
}

// Host publishes change requests on a repository hosting service.
type Host interface {
	// CreateChangeRequest opens a change request and returns its URL.
	CreateChangeRequest(ctx context.Context, req ChangeRequest) (string, error)
}
