// Package issuefs contains core domain types and interfaces for the issue filesystem
package issuefs

import (
	"fmt"
	"strings"
	"time"
)

// Backend names one supported issue tracker.
type Backend string

const (
	Jira     Backend = "jira"
	GitHub   Backend = "github"
	Bugzilla Backend = "bugzilla"
)

// Backends lists every supported tracker in fixed refresh priority order.
// Earlier backends win when two of them report the same universal key.
var Backends = []Backend{Jira, GitHub, Bugzilla}

// DisplayName returns the human readable tracker name used in rendered files
func (b Backend) DisplayName() string {
	switch b {
	case Jira:
		return "Jira"
	case GitHub:
		return "GitHub"
	case Bugzilla:
		return "Bugzilla"
	}
	return string(b)
}

// IssueKey derives the universal issue key for a native identifier of this backend.
// Jira keys are already project qualified so they are used as is.
func (b Backend) IssueKey(id string) string {
	id = strings.TrimSpace(id)
	switch b {
	case GitHub:
		return "GITHUB-" + strings.TrimPrefix(id, "GITHUB-")
	case Bugzilla:
		return "BUGZILLA-" + strings.TrimPrefix(id, "BUGZILLA-")
	}
	return id
}

// Issue is a single issue fetched from a tracker
type Issue struct {
	Backend     Backend
	Key         string // Universal key; unique within one folder's cache
	ID          string // Native tracker id (Jira key, GitHub number, Bugzilla id)
	Title       string
	Description string
	URL         string // Browser link if known
	Comments    []Comment
}

// Comment is immutable once fetched
type Comment struct {
	Author  string
	Text    string
	Created time.Time
}

func (c Comment) String() string {
	return fmt.Sprintf("Comment by %s on %s: %s", c.Author, c.Created.Format(time.RFC3339), c.Text)
}

// FileName is the name of the synthetic file holding this issue
func (i *Issue) FileName() string {
	return i.Key + ".txt"
}

// Render returns the synthetic file body for the issue
func (i *Issue) Render() string {
	tracker := i.Backend.DisplayName()
	var b strings.Builder
	fmt.Fprintf(&b, "%s issue: %s\n", tracker, i.Key)
	fmt.Fprintf(&b, "Summary: %s\n", i.Title)
	if i.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", i.URL)
	}
	fmt.Fprintf(&b, "Description: %s\n", i.Description)
	for _, c := range i.Comments {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "End of %s issue %s information\n", tracker, i.Key)
	return b.String()
}
