package folder

import (
	"context"
	"errors"
	"time"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Refresh recomputes the issue cache from the registered backends in priority order.
//
// For each backend, search results come first in the backend's order, then the
// explicitly listed ids that are not already cached. A key seen earlier is never
// replaced. Failed calls are logged and skipped so partial results are kept; the
// returned error aggregates those failures and is informational only.
//
// Backends missing from reg are never consulted. Calls rejected with
// [issuefs.ErrMissingParam] count as not configured and are skipped silently.
func (f *Folder) Refresh(ctx context.Context, reg *issuefs.Registry) error {
	logger := util.GetLogger("Folder.Refresh").With().
		Str("folder", f.name).
		Str("refresh", uuid.NewString()).
		Logger()
	logger.Debug().Msg("Refresh started")

	var errs *multierror.Error
	results := make([]*issuefs.Issue, 0)
	seen := make(map[string]struct{})
	add := func(issue *issuefs.Issue) bool {
		if issue == nil {
			return false
		}
		if _, dup := seen[issue.Key]; dup {
			return false
		}
		seen[issue.Key] = struct{}{}
		results = append(results, issue)
		return true
	}

	configured := false
	for _, q := range f.cfg.Queries() {
		if q.IsEmpty() {
			continue
		}
		configured = true

		b := q.Backend()
		blog := logger.With().Str("backend", string(b)).Logger()
		tracker, ok := reg.Lookup(b)
		if !ok {
			blog.Debug().Msg("Backend not registered; skipping")
			continue
		}
		opts := q.Options()

		if query := q.SearchQuery(); query != "" {
			found, err := tracker.Search(ctx, query, opts)
			switch {
			case errors.Is(err, issuefs.ErrMissingParam):
				blog.Debug().Err(err).Msg("Backend not configured for search; skipping")
			case err != nil:
				blog.Warn().Err(err).Str("query", query).Msg("Search failed")
				errs = multierror.Append(errs, &issuefs.BackendError{Backend: b, Op: "search", Target: query, Err: err})
			default:
				added := 0
				for _, issue := range found {
					if add(issue) {
						added++
					}
				}
				blog.Debug().Int("found", len(found)).Int("added", added).Msg("Search done")
			}
		}

		for _, id := range q.IssueIDs() {
			if _, dup := seen[b.IssueKey(id)]; dup {
				continue
			}
			issue, err := tracker.GetIssue(ctx, id, opts)
			switch {
			case errors.Is(err, issuefs.ErrMissingParam):
				blog.Debug().Err(err).Str("id", id).Msg("Backend not configured for get_issue; skipping")
			case errors.Is(err, issuefs.ErrIssueNotFound), err == nil && issue == nil:
				blog.Warn().Str("id", id).Msg("Issue not found")
			case err != nil:
				blog.Warn().Err(err).Str("id", id).Msg("Could not fetch issue")
				errs = multierror.Append(errs, &issuefs.BackendError{Backend: b, Op: "get_issue", Target: id, Err: err})
			default:
				add(issue)
			}
		}
	}

	if !configured && f.cfg.Enabled {
		logger.Warn().Msg("Folder is enabled but no backend has a query or issue ids")
		results = nil
	}

	f.issues = results
	f.lastUpdated = time.Now()
	logger.Info().Int("issues", len(results)).Msg("Refreshed folder")
	return errs.ErrorOrNil()
}
