package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brettbedarf/issuefs"
	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"
)

const defaultGitHubAPIVersion = "2022-11-28"

// GitHubTracker searches issues of a single repository per call
type GitHubTracker struct {
	client *github.Client
	base   string
}

var _ issuefs.Tracker = (*GitHubTracker)(nil)

// NewGitHubTracker returns a client for the GitHub API at baseURL.
// httpClient may be nil to use http.DefaultClient underneath the token transport.
func NewGitHubTracker(baseURL, token string, httpClient *http.Client) (*GitHubTracker, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	apiURL := *base
	apiURL.Path += "/"
	client.BaseURL = &apiURL
	return &GitHubTracker{client: client, base: base.String()}, nil
}

func splitRepo(repo string) (owner, name string, err error) {
	repo = strings.Trim(strings.TrimSpace(repo), "/")
	if repo == "" {
		return "", "", issuefs.ErrMissingParam
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository %q is not owner/name", repo)
	}
	return owner, name, nil
}

// issueNumber accepts "12" as well as the universal key "GITHUB-12"
func issueNumber(id string) (int, error) {
	id = strings.TrimPrefix(strings.TrimSpace(id), "GITHUB-")
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid GitHub issue number %q", id)
	}
	return n, nil
}

func (g *GitHubTracker) issueFrom(i *github.Issue) *issuefs.Issue {
	n := strconv.Itoa(i.GetNumber())
	return &issuefs.Issue{
		Backend:     issuefs.GitHub,
		Key:         issuefs.GitHub.IssueKey(n),
		ID:          n,
		Title:       i.GetTitle(),
		Description: i.GetBody(),
		URL:         i.GetHTMLURL(),
	}
}

// Search runs a GitHub issue search constrained to opts.Repo, most recently
// updated first. Only the first 100 results are returned.
func (g *GitHubTracker) Search(ctx context.Context, query string, opts issuefs.QueryOptions) ([]*issuefs.Issue, error) {
	owner, name, err := splitRepo(opts.Repo)
	if err != nil {
		return nil, err
	}
	repo := owner + "/" + name
	q := strings.TrimSpace(query)
	if !strings.Contains(q, "repo:"+repo) {
		q = strings.TrimSpace(q + " repo:" + repo)
	}

	res, _, err := g.client.Search.Issues(ctx, q, &github.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, err
	}

	issues := make([]*issuefs.Issue, 0, len(res.Issues))
	for _, i := range res.Issues {
		issue := g.issueFrom(i)
		if issue.Comments, err = g.listComments(ctx, owner, name, i.GetNumber()); err != nil {
			return nil, fmt.Errorf("comments of #%d: %w", i.GetNumber(), err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func (g *GitHubTracker) GetIssue(ctx context.Context, id string, opts issuefs.QueryOptions) (*issuefs.Issue, error) {
	owner, name, err := splitRepo(opts.Repo)
	if err != nil {
		return nil, err
	}
	n, err := issueNumber(id)
	if err != nil {
		return nil, err
	}

	i, _, err := g.client.Issues.Get(ctx, owner, name, n)
	if err != nil {
		var ge *github.ErrorResponse
		if errors.As(err, &ge) && ge.Response != nil && ge.Response.StatusCode == http.StatusNotFound {
			return nil, issuefs.ErrIssueNotFound
		}
		return nil, err
	}
	issue := g.issueFrom(i)
	if issue.Comments, err = g.listComments(ctx, owner, name, n); err != nil {
		return nil, fmt.Errorf("comments of #%d: %w", n, err)
	}
	return issue, nil
}

func (g *GitHubTracker) GetComments(ctx context.Context, id string, opts issuefs.QueryOptions) ([]issuefs.Comment, error) {
	owner, name, err := splitRepo(opts.Repo)
	if err != nil {
		return nil, err
	}
	n, err := issueNumber(id)
	if err != nil {
		return nil, err
	}
	return g.listComments(ctx, owner, name, n)
}

func (g *GitHubTracker) listComments(ctx context.Context, owner, repo string, n int) ([]issuefs.Comment, error) {
	opt := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var comments []issuefs.Comment
	for {
		cs, r, err := g.client.Issues.ListComments(ctx, owner, repo, n, opt)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			comments = append(comments, issuefs.Comment{
				Author:  c.GetUser().GetLogin(),
				Text:    c.GetBody(),
				Created: c.GetCreatedAt(),
			})
		}
		if r == nil || r.NextPage == 0 {
			break
		}
		opt.Page = r.NextPage
	}
	return comments, nil
}

// Version checks authentication by fetching the token's user
func (g *GitHubTracker) Version(ctx context.Context) issuefs.VersionInfo {
	user, resp, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return issuefs.VersionInfo{Backend: issuefs.GitHub, Error: err.Error()}
	}
	apiVersion := defaultGitHubAPIVersion
	if resp != nil {
		if v := resp.Header.Get("X-GitHub-Api-Version-Selected"); v != "" {
			apiVersion = v
		}
	}
	return issuefs.VersionInfo{
		Backend:     issuefs.GitHub,
		Success:     true,
		Version:     apiVersion,
		ServerTitle: "GitHub",
		BaseURL:     g.base,
		User:        orDefault(user.GetLogin(), "unknown"),
		CheckedAt:   time.Now(),
	}
}
