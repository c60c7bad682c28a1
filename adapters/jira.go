package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/brettbedarf/issuefs"
	"github.com/tidwall/gjson"
)

const (
	jiraFields     = "key,summary,description"
	jiraTimeLayout = "2006-01-02T15:04:05.000-0700"
)

// JiraTracker talks to the Jira REST API v2 with a bearer token
type JiraTracker struct {
	rest *restClient
}

var _ issuefs.Tracker = (*JiraTracker)(nil)

// NewJiraTracker returns a client for the Jira server at baseURL
func NewJiraTracker(baseURL, token string, client HTTPClient) (*JiraTracker, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &JiraTracker{rest: &restClient{
		base:    base,
		client:  client,
		headers: map[string]string{"Authorization": "Bearer " + token},
	}}, nil
}

func (j *JiraTracker) browseURL(key string) string {
	return j.rest.base.String() + "/browse/" + key
}

func (j *JiraTracker) issueFrom(r gjson.Result) *issuefs.Issue {
	key := r.Get("key").String()
	return &issuefs.Issue{
		Backend:     issuefs.Jira,
		Key:         issuefs.Jira.IssueKey(key),
		ID:          key,
		Title:       r.Get("fields.summary").String(),
		Description: r.Get("fields.description").String(),
		URL:         j.browseURL(key),
	}
}

// Search runs a JQL query. Every result is fetched with its comments.
func (j *JiraTracker) Search(ctx context.Context, query string, _ issuefs.QueryOptions) ([]*issuefs.Issue, error) {
	body, err := j.rest.get(ctx, "/rest/api/2/search", url.Values{
		"jql":        {query},
		"fields":     {jiraFields},
		"maxResults": {"100"},
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("jira search: malformed response")
	}

	var issues []*issuefs.Issue
	for _, r := range gjson.GetBytes(body, "issues").Array() {
		issue := j.issueFrom(r)
		if issue.ID == "" {
			continue
		}
		comments, err := j.GetComments(ctx, issue.ID, issuefs.QueryOptions{})
		if err != nil {
			return nil, fmt.Errorf("comments of %s: %w", issue.ID, err)
		}
		issue.Comments = comments
		issues = append(issues, issue)
	}
	return issues, nil
}

func (j *JiraTracker) GetIssue(ctx context.Context, id string, _ issuefs.QueryOptions) (*issuefs.Issue, error) {
	id = strings.TrimSpace(id)
	body, err := j.rest.get(ctx, "/rest/api/2/issue/"+url.PathEscape(id), url.Values{"fields": {jiraFields}})
	if isNotFound(err) {
		return nil, issuefs.ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("jira issue %s: malformed response", id)
	}

	issue := j.issueFrom(gjson.ParseBytes(body))
	if issue.ID == "" {
		return nil, issuefs.ErrIssueNotFound
	}
	if issue.Comments, err = j.GetComments(ctx, issue.ID, issuefs.QueryOptions{}); err != nil {
		return nil, fmt.Errorf("comments of %s: %w", issue.ID, err)
	}
	return issue, nil
}

func (j *JiraTracker) GetComments(ctx context.Context, id string, _ issuefs.QueryOptions) ([]issuefs.Comment, error) {
	body, err := j.rest.get(ctx, "/rest/api/2/issue/"+url.PathEscape(id)+"/comment", nil)
	if err != nil {
		return nil, err
	}
	var comments []issuefs.Comment
	for _, c := range gjson.GetBytes(body, "comments").Array() {
		comments = append(comments, issuefs.Comment{
			Author:  c.Get("author.displayName").String(),
			Text:    c.Get("body").String(),
			Created: parseTime(c.Get("created").String()),
		})
	}
	return comments, nil
}

func (j *JiraTracker) Version(ctx context.Context) issuefs.VersionInfo {
	body, err := j.rest.get(ctx, "/rest/api/2/serverInfo", nil)
	if err != nil {
		return issuefs.VersionInfo{Backend: issuefs.Jira, Error: err.Error()}
	}
	if !gjson.ValidBytes(body) {
		return issuefs.VersionInfo{Backend: issuefs.Jira, Error: "malformed serverInfo response"}
	}
	info := gjson.ParseBytes(body)
	return issuefs.VersionInfo{
		Backend:     issuefs.Jira,
		Success:     true,
		Version:     orDefault(info.Get("version").String(), "unknown"),
		Build:       orDefault(info.Get("buildNumber").String(), "unknown"),
		ServerTitle: orDefault(info.Get("serverTitle").String(), "JIRA"),
		BaseURL:     orDefault(info.Get("baseUrl").String(), j.rest.base.String()),
		CheckedAt:   time.Now(),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// parseTime accepts the timestamp formats the trackers emit. Unparseable
// values yield the zero time.
func parseTime(s string) time.Time {
	for _, layout := range []string{jiraTimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
