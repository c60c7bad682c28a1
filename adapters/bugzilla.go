package adapters

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brettbedarf/issuefs"
	"github.com/tidwall/gjson"
)

// BugzillaTracker talks to the Bugzilla 5 REST API with an api_key parameter.
// Bugzilla has no separate description field: the first comment of a bug is
// its description and is not repeated among the comments.
type BugzillaTracker struct {
	rest *restClient
}

var _ issuefs.Tracker = (*BugzillaTracker)(nil)

// NewBugzillaTracker returns a client for the Bugzilla server at baseURL
func NewBugzillaTracker(baseURL, token string, client HTTPClient) (*BugzillaTracker, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &BugzillaTracker{rest: &restClient{
		base:      base,
		client:    client,
		authQuery: url.Values{"api_key": {token}},
	}}, nil
}

// bugID accepts "1001" as well as the universal key "BUGZILLA-1001".
// Ids are numeric so they can be used in gjson paths unescaped.
func bugID(id string) (string, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "BUGZILLA-")
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", fmt.Errorf("invalid Bugzilla bug id %q", id)
	}
	return id, nil
}

func (b *BugzillaTracker) showURL(id string) string {
	return b.rest.base.String() + "/show_bug.cgi?id=" + url.QueryEscape(id)
}

// withDescription builds an issue from a bug and its full comment list
func (b *BugzillaTracker) withDescription(bug gjson.Result, comments []issuefs.Comment) *issuefs.Issue {
	id := bug.Get("id").String()
	issue := &issuefs.Issue{
		Backend: issuefs.Bugzilla,
		Key:     issuefs.Bugzilla.IssueKey(id),
		ID:      id,
		Title:   bug.Get("summary").String(),
		URL:     b.showURL(id),
	}
	if len(comments) > 0 {
		issue.Description = comments[0].Text
		issue.Comments = comments[1:]
	}
	return issue
}

// Search matches query against bug summaries, most recently changed first.
// Bugzilla matches substrings so results are filtered to whole word matches.
func (b *BugzillaTracker) Search(ctx context.Context, query string, _ issuefs.QueryOptions) ([]*issuefs.Issue, error) {
	query = strings.TrimSpace(query)
	filter, err := regexp.Compile(`\b` + regexp.QuoteMeta(query) + `\b`)
	if err != nil {
		return nil, err
	}

	body, err := b.rest.get(ctx, "/rest/bug", url.Values{
		"summary": {query},
		"order":   {"last_change_time DESC"},
		"limit":   {"100"},
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("bugzilla search: malformed response")
	}

	var issues []*issuefs.Issue
	for _, bug := range gjson.GetBytes(body, "bugs").Array() {
		if !filter.MatchString(bug.Get("summary").String()) {
			continue
		}
		id := bug.Get("id").String()
		comments, err := b.GetComments(ctx, id, issuefs.QueryOptions{})
		if err != nil {
			return nil, fmt.Errorf("comments of bug %s: %w", id, err)
		}
		issues = append(issues, b.withDescription(bug, comments))
	}
	return issues, nil
}

func (b *BugzillaTracker) GetIssue(ctx context.Context, id string, _ issuefs.QueryOptions) (*issuefs.Issue, error) {
	id, err := bugID(id)
	if err != nil {
		return nil, err
	}
	body, err := b.rest.get(ctx, "/rest/bug/"+url.PathEscape(id), nil)
	if isNotFound(err) {
		return nil, issuefs.ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	bugs := gjson.GetBytes(body, "bugs").Array()
	if len(bugs) == 0 {
		return nil, issuefs.ErrIssueNotFound
	}

	comments, err := b.GetComments(ctx, id, issuefs.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("comments of bug %s: %w", id, err)
	}
	return b.withDescription(bugs[0], comments), nil
}

// GetComments returns every comment of the bug, the description included
func (b *BugzillaTracker) GetComments(ctx context.Context, id string, _ issuefs.QueryOptions) ([]issuefs.Comment, error) {
	id, err := bugID(id)
	if err != nil {
		return nil, err
	}
	body, err := b.rest.get(ctx, "/rest/bug/"+url.PathEscape(id)+"/comment", nil)
	if err != nil {
		return nil, err
	}

	var comments []issuefs.Comment
	path := "bugs." + id + ".comments"
	for _, c := range gjson.GetBytes(body, path).Array() {
		comments = append(comments, issuefs.Comment{
			Author:  c.Get("creator").String(),
			Text:    c.Get("text").String(),
			Created: parseTime(c.Get("creation_time").String()),
		})
	}
	return comments, nil
}

func (b *BugzillaTracker) Version(ctx context.Context) issuefs.VersionInfo {
	body, err := b.rest.get(ctx, "/rest/version", nil)
	if err != nil {
		return issuefs.VersionInfo{Backend: issuefs.Bugzilla, Error: err.Error()}
	}
	if !gjson.ValidBytes(body) {
		return issuefs.VersionInfo{Backend: issuefs.Bugzilla, Error: "malformed version response"}
	}
	return issuefs.VersionInfo{
		Backend:     issuefs.Bugzilla,
		Success:     true,
		Version:     orDefault(gjson.GetBytes(body, "version").String(), "unknown"),
		ServerTitle: "Bugzilla",
		BaseURL:     b.rest.base.String(),
		CheckedAt:   time.Now(),
	}
}
