package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/issuefs/internal/util"
)

// maxBodySize caps how much of a tracker response is read
const maxBodySize = 32 << 20

// HTTPClient is satisfied by *http.Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non 2xx tracker response
type StatusError struct {
	StatusCode int
	URL        string
	Body       string // Truncated response body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// ParseBaseURL validates a tracker base URL. Only http and https URLs
// without user info are accepted. A trailing slash is dropped.
func ParseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty base URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", raw)
	}
	if u.User != nil {
		return nil, fmt.Errorf("invalid base URL %q: user info not allowed", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// restClient issues authenticated JSON GET requests against one tracker
type restClient struct {
	base      *url.URL
	client    HTTPClient
	headers   map[string]string
	authQuery url.Values // auth parameters added to every request
}

func (c *restClient) endpoint(p string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + p
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	for k, v := range c.authQuery {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// get returns the body of a successful GET of p
func (c *restClient) get(ctx context.Context, p string, query url.Values) ([]byte, error) {
	logger := util.GetLogger("Adapters.get")

	target := c.endpoint(p, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "issuefs")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	// path only; the query may carry credentials
	logger.Debug().Str("host", c.base.Host).Str("path", c.base.Path+p).Msg("GET")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: c.base.Host + c.base.Path + p, Body: snippet}
	}
	return body, nil
}
