package adapters

import (
	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/config"
)

// Builtins returns factories for the built-in adapters, or only the given
// backends if any are provided
func Builtins(backends ...issuefs.Backend) *Factories {
	if len(backends) == 0 {
		backends = issuefs.Backends
	}

	f := NewFactories()
	for _, b := range backends {
		switch b {
		case issuefs.Jira:
			f.Register(b, func(c config.Credentials, opts Options) (issuefs.Tracker, error) {
				return NewJiraTracker(c.URL, c.Token, opts.httpClient())
			})
		case issuefs.GitHub:
			f.Register(b, func(c config.Credentials, opts Options) (issuefs.Tracker, error) {
				return NewGitHubTracker(c.URL, c.Token, opts.httpClient())
			})
		case issuefs.Bugzilla:
			f.Register(b, func(c config.Credentials, opts Options) (issuefs.Tracker, error) {
				return NewBugzillaTracker(c.URL, c.Token, opts.httpClient())
			})
		}
	}
	return f
}
