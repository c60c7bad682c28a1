package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read at startup
const (
	EnvStorePath = "ISSUEFS_STORE"

	EnvJiraURL       = "JIRA_URL"
	EnvJiraToken     = "JIRA_API_TOKEN"
	EnvGitHubURL     = "GITHUB_URL"
	EnvGitHubToken   = "GITHUB_API_TOKEN"
	EnvBugzillaURL   = "BUGZILLA_URL"
	EnvBugzillaToken = "BUGZILLA_API_TOKEN"
)

// DefaultGitHubURL is used when only a GitHub token is supplied
const DefaultGitHubURL = "https://api.github.com"

// Credentials is a tracker base URL and API token pair
type Credentials struct {
	URL   string
	Token string
}

// Valid reports whether both halves are present. A tracker is only queryable
// with valid credentials.
func (c Credentials) Valid() bool {
	return c.URL != "" && c.Token != ""
}

// TrackerCredentials holds the credentials for every supported tracker
type TrackerCredentials struct {
	Jira     Credentials
	GitHub   Credentials
	Bugzilla Credentials
}

// TrackerCredentialsFromEnv reads tracker credentials with getenv (i.e. os.Getenv).
// Trailing slashes are trimmed from URLs.
func TrackerCredentialsFromEnv(getenv func(string) string) TrackerCredentials {
	read := func(urlKey, tokenKey, defURL string) Credentials {
		c := Credentials{
			URL:   strings.TrimRight(strings.TrimSpace(getenv(urlKey)), "/"),
			Token: strings.TrimSpace(getenv(tokenKey)),
		}
		if c.URL == "" && c.Token != "" {
			c.URL = defURL
		}
		return c
	}
	return TrackerCredentials{
		Jira:     read(EnvJiraURL, EnvJiraToken, ""),
		GitHub:   read(EnvGitHubURL, EnvGitHubToken, DefaultGitHubURL),
		Bugzilla: read(EnvBugzillaURL, EnvBugzillaToken, ""),
	}
}

// ApplyEnv fills tracker credentials and the store path override from getenv
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.Trackers = TrackerCredentialsFromEnv(getenv)
	if p := strings.TrimSpace(getenv(EnvStorePath)); p != "" {
		c.StorePath = p
	}
}

// DefaultStorePath returns the per-user store location under the user config dir.
// Falls back to the home directory, then the working directory.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		if home, herr := os.UserHomeDir(); herr == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "issuefs", "folders.yaml")
}
