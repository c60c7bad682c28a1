package folder

import (
	"slices"

	"github.com/brettbedarf/issuefs"
)

// BackendQuery is one backend's slice of a folder configuration.
// Each supported backend has exactly one concrete variant.
type BackendQuery interface {
	Backend() issuefs.Backend
	// SearchQuery is the backend search expression; empty means no search
	SearchQuery() string
	// IssueIDs are the explicitly listed native issue identifiers in user order
	IssueIDs() []string
	// Options carries the backend-specific parameters for tracker calls
	Options() issuefs.QueryOptions
	// IsEmpty reports whether neither a query nor any explicit id is set
	IsEmpty() bool
}

// JiraQuery selects issues with JQL and/or explicit issue keys
type JiraQuery struct {
	JQL string   `yaml:"jql"`
	IDs []string `yaml:"ids"`
}

func (q JiraQuery) Backend() issuefs.Backend      { return issuefs.Jira }
func (q JiraQuery) SearchQuery() string           { return q.JQL }
func (q JiraQuery) IssueIDs() []string            { return q.IDs }
func (q JiraQuery) Options() issuefs.QueryOptions { return issuefs.QueryOptions{} }
func (q JiraQuery) IsEmpty() bool                 { return q.JQL == "" && len(q.IDs) == 0 }

// GitHubQuery selects issues of one repository with GitHub search syntax
// and/or explicit issue numbers. Repo is required for any GitHub call.
type GitHubQuery struct {
	Repo  string   `yaml:"repo"`
	Query string   `yaml:"query"`
	IDs   []string `yaml:"ids"`
}

func (q GitHubQuery) Backend() issuefs.Backend { return issuefs.GitHub }
func (q GitHubQuery) SearchQuery() string      { return q.Query }
func (q GitHubQuery) IssueIDs() []string       { return q.IDs }
func (q GitHubQuery) Options() issuefs.QueryOptions {
	return issuefs.QueryOptions{Repo: q.Repo}
}
func (q GitHubQuery) IsEmpty() bool { return q.Query == "" && len(q.IDs) == 0 }

// BugzillaQuery selects bugs by summary words and/or explicit bug ids
type BugzillaQuery struct {
	Query string   `yaml:"query"`
	IDs   []string `yaml:"ids"`
}

func (q BugzillaQuery) Backend() issuefs.Backend      { return issuefs.Bugzilla }
func (q BugzillaQuery) SearchQuery() string           { return q.Query }
func (q BugzillaQuery) IssueIDs() []string            { return q.IDs }
func (q BugzillaQuery) Options() issuefs.QueryOptions { return issuefs.QueryOptions{} }
func (q BugzillaQuery) IsEmpty() bool                 { return q.Query == "" && len(q.IDs) == 0 }

// Config is the user editable part of a folder. Field order is the
// serialized order of config.yaml.
type Config struct {
	Enabled    bool          `yaml:"enabled"`
	Persistent bool          `yaml:"persistent"`
	Jira       JiraQuery     `yaml:"jira"`
	GitHub     GitHubQuery   `yaml:"github"`
	Bugzilla   BugzillaQuery `yaml:"bugzilla"`
}

// Queries returns every backend block in refresh priority order
func (c Config) Queries() []BackendQuery {
	return []BackendQuery{c.Jira, c.GitHub, c.Bugzilla}
}

// HasQueries reports whether any backend holds a query or explicit id
func (c Config) HasQueries() bool {
	for _, q := range c.Queries() {
		if !q.IsEmpty() {
			return true
		}
	}
	return false
}

// Equal compares every tracked field
func (c Config) Equal(o Config) bool {
	return c.Enabled == o.Enabled &&
		c.Persistent == o.Persistent &&
		c.Jira.JQL == o.Jira.JQL && slices.Equal(c.Jira.IDs, o.Jira.IDs) &&
		c.GitHub.Repo == o.GitHub.Repo && c.GitHub.Query == o.GitHub.Query &&
		slices.Equal(c.GitHub.IDs, o.GitHub.IDs) &&
		c.Bugzilla.Query == o.Bugzilla.Query && slices.Equal(c.Bugzilla.IDs, o.Bugzilla.IDs)
}
