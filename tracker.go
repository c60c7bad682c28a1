package issuefs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrIssueNotFound is returned by [Tracker.GetIssue] when the tracker has no such issue
	ErrIssueNotFound = errors.New("issue not found")

	// ErrMissingParam is returned when a backend-specific required parameter
	// (i.e. a GitHub repository) is absent. Callers treat the backend as not
	// configured for that operation.
	ErrMissingParam = errors.New("missing required parameter")
)

// QueryOptions carries backend-specific parameters. Backends ignore the fields
// they don't use.
type QueryOptions struct {
	Repo string // "owner/name"; required by GitHub
}

// Tracker is the uniform contract every tracker client satisfies
type Tracker interface {
	// Search returns the issues matching query in the tracker's reported order
	Search(ctx context.Context, query string, opts QueryOptions) ([]*Issue, error)

	// GetIssue fetches one issue including its comments.
	// Returns [ErrIssueNotFound] if it does not exist.
	GetIssue(ctx context.Context, id string, opts QueryOptions) (*Issue, error)

	// GetComments returns the issue's comments oldest first
	GetComments(ctx context.Context, id string, opts QueryOptions) ([]Comment, error)

	// Version probes the tracker. It never returns an error; failures are
	// reported through [VersionInfo.Error].
	Version(ctx context.Context) VersionInfo
}

// VersionInfo is the result of a tracker connection probe
type VersionInfo struct {
	Backend     Backend
	Success     bool
	Version     string
	Build       string
	ServerTitle string
	BaseURL     string
	User        string // Authenticated identity if the tracker reports one
	Error       string
	CheckedAt   time.Time
}

// BackendError wraps a failed tracker call (network, auth, malformed payload)
type BackendError struct {
	Backend Backend
	Op      string // "search", "get_issue", ...
	Target  string // query or issue id
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s %q failed: %v", e.Backend, e.Op, e.Target, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
