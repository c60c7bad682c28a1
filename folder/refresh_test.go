package folder

import (
	"context"
	"errors"
	"testing"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jiraIssue(key string) *issuefs.Issue {
	return &issuefs.Issue{Backend: issuefs.Jira, Key: key, ID: key, Title: "title " + key}
}

func githubIssue(n string) *issuefs.Issue {
	return &issuefs.Issue{Backend: issuefs.GitHub, Key: issuefs.GitHub.IssueKey(n), ID: n, Title: "gh " + n}
}

func keys(issues []*issuefs.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Key)
	}
	return out
}

func TestRefresh_SearchThenIDs(t *testing.T) {
	t.Parallel()

	jira := &mocks.MockTracker{}
	jira.On("Search", mock.Anything, "project = A", issuefs.QueryOptions{}).
		Return([]*issuefs.Issue{jiraIssue("A-2"), jiraIssue("A-1")}, nil)
	jira.On("GetIssue", mock.Anything, "A-9", issuefs.QueryOptions{}).Return(jiraIssue("A-9"), nil)

	reg := issuefs.NewRegistry(map[issuefs.Backend]issuefs.Tracker{issuefs.Jira: jira})
	f := NewWithConfig("work", Config{
		Enabled: true,
		Jira:    JiraQuery{JQL: "project = A", IDs: []string{"A-1", "A-9"}},
	})

	err := f.Refresh(context.Background(), reg)

	require.NoError(t, err)
	assert.Equal(t, []string{"A-2", "A-1", "A-9"}, keys(f.Issues()), "search order first, then ids")
	assert.False(t, f.LastUpdated().IsZero())
	jira.AssertExpectations(t)
	jira.AssertNotCalled(t, "GetIssue", mock.Anything, "A-1", mock.Anything)
}

func TestRefresh_PriorityAndDedup(t *testing.T) {
	t.Parallel()

	jira := &mocks.MockTracker{}
	jira.On("Search", mock.Anything, "q", issuefs.QueryOptions{}).
		Return([]*issuefs.Issue{jiraIssue("GITHUB-1")}, nil) // collides with a GitHub key
	gh := &mocks.MockTracker{}
	opts := issuefs.QueryOptions{Repo: "o/r"}
	gh.On("Search", mock.Anything, "is:open", opts).
		Return([]*issuefs.Issue{githubIssue("1"), githubIssue("2")}, nil)

	reg := issuefs.NewRegistry(map[issuefs.Backend]issuefs.Tracker{issuefs.Jira: jira, issuefs.GitHub: gh})
	f := NewWithConfig("mix", Config{
		Enabled: true,
		Jira:    JiraQuery{JQL: "q"},
		GitHub:  GitHubQuery{Repo: "o/r", Query: "is:open"},
	})

	require.NoError(t, f.Refresh(context.Background(), reg))

	assert.Equal(t, []string{"GITHUB-1", "GITHUB-2"}, keys(f.Issues()))
	first, ok := f.Issue("GITHUB-1")
	require.True(t, ok)
	assert.Equal(t, issuefs.Jira, first.Backend, "earlier backend must win")
}

func TestRefresh_FailuresKeepPartialResults(t *testing.T) {
	t.Parallel()

	jira := &mocks.MockTracker{}
	jira.On("Search", mock.Anything, "q", issuefs.QueryOptions{}).Return(nil, errors.New("connection refused"))
	jira.On("GetIssue", mock.Anything, "A-1", issuefs.QueryOptions{}).Return(jiraIssue("A-1"), nil)
	jira.On("GetIssue", mock.Anything, "A-404", issuefs.QueryOptions{}).Return(nil, issuefs.ErrIssueNotFound)
	jira.On("GetIssue", mock.Anything, "A-500", issuefs.QueryOptions{}).Return(nil, errors.New("boom"))

	reg := issuefs.NewRegistry(map[issuefs.Backend]issuefs.Tracker{issuefs.Jira: jira})
	f := NewWithConfig("partial", Config{
		Enabled: true,
		Jira:    JiraQuery{JQL: "q", IDs: []string{"A-404", "A-500", "A-1"}},
	})

	err := f.Refresh(context.Background(), reg)

	require.Error(t, err)
	var berr *issuefs.BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, issuefs.Jira, berr.Backend)
	assert.NotContains(t, err.Error(), "A-404", "not found is not a failure")
	assert.Contains(t, err.Error(), "A-500")
	assert.Equal(t, []string{"A-1"}, keys(f.Issues()))
}

func TestRefresh_MissingParamSkipped(t *testing.T) {
	t.Parallel()

	gh := &mocks.MockTracker{}
	gh.On("Search", mock.Anything, "is:open", issuefs.QueryOptions{}).Return(nil, issuefs.ErrMissingParam)
	gh.On("GetIssue", mock.Anything, "3", issuefs.QueryOptions{}).Return(nil, issuefs.ErrMissingParam)

	reg := issuefs.NewRegistry(map[issuefs.Backend]issuefs.Tracker{issuefs.GitHub: gh})
	f := NewWithConfig("norepo", Config{Enabled: true, GitHub: GitHubQuery{Query: "is:open", IDs: []string{"3"}}})

	err := f.Refresh(context.Background(), reg)

	assert.NoError(t, err)
	assert.Empty(t, f.Issues())
}

func TestRefresh_UnregisteredBackendNeverConsulted(t *testing.T) {
	t.Parallel()

	jira := &mocks.MockTracker{}
	reg := issuefs.NewRegistry(map[issuefs.Backend]issuefs.Tracker{issuefs.Jira: jira})
	f := NewWithConfig("bz", Config{Enabled: true, Bugzilla: BugzillaQuery{Query: "kernel"}})

	require.NoError(t, f.Refresh(context.Background(), reg))

	assert.Empty(t, f.Issues())
	jira.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_NoQueriesClearsCache(t *testing.T) {
	t.Parallel()

	f := NewWithConfig("empty", Config{Enabled: true})
	f.issues = []*issuefs.Issue{jiraIssue("OLD-1")}

	require.NoError(t, f.Refresh(context.Background(), issuefs.NewRegistry(nil)))

	assert.Empty(t, f.Issues())
}

func TestFolder_SetConfig(t *testing.T) {
	t.Parallel()

	f := New("x")
	cfg := Config{Enabled: true, Jira: JiraQuery{JQL: "a"}}

	assert.True(t, f.SetConfig(cfg))
	assert.False(t, f.SetConfig(cfg), "same config must not report a change")
	assert.Equal(t, cfg, f.Config())

	f.issues = []*issuefs.Issue{jiraIssue("A-1")}
	f.ClearIssues()
	assert.Empty(t, f.Issues())
	_, ok := f.Issue("A-1")
	assert.False(t, ok)
}
