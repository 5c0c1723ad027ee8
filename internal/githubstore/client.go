// Package githubstore implements the repository file store against the
// GitHub REST v3 API: default branch resolution, recursive tree listing,
// and raw content fetches, with bounded retry and in-memory caching.
package githubstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"repostack/internal/cache"
	"repostack/internal/retrieval"
)

const defaultBaseURL = "https://api.github.com"

// Client talks to the GitHub REST API. Tree listings are cached with a TTL
// (a listing is only meaningful for the life of a few requests against the
// same ref); raw contents are cached LRU without expiry since a blob fetched
// for one question is very likely re-fetched for the next.
type Client struct {
	http    *http.Client
	baseURL string
	token   string

	trees    *cache.LRUTTL[string, []retrieval.TreeEntry]
	contents *lru.Cache[string, []byte]

	maxAttempts int
	baseDelay   time.Duration
}

type Option func(*Client)

// WithBaseURL points the client at a different API host (tests, GHE).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken sets the bearer token for authenticated requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithRetry overrides the retry policy for idempotent reads.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if attempts >= 1 {
			c.maxAttempts = attempts
		}
		if baseDelay > 0 {
			c.baseDelay = baseDelay
		}
	}
}

func New(opts ...Option) *Client {
	contents, _ := lru.New[string, []byte](512)
	c := &Client{
		http:        &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBaseURL,
		trees:       cache.NewLRUTTL[string, []retrieval.TreeEntry](64, 90*time.Second),
		contents:    contents,
		maxAttempts: 3,
		baseDelay:   400 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultBranch resolves the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var out struct {
		DefaultBranch string `json:"default_branch"`
	}
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return "", err
	}
	if out.DefaultBranch == "" {
		return "", fmt.Errorf("repo %s/%s: %w", owner, repo, ErrNotFound)
	}
	return out.DefaultBranch, nil
}

// ListTree returns the full recursive tree listing for a ref.
func (c *Client) ListTree(ctx context.Context, owner, repo, ref string) ([]retrieval.TreeEntry, error) {
	key := owner + "/" + repo + "@" + ref
	if entries, ok := c.trees.Get(key); ok {
		return entries, nil
	}

	var out struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
			Size int64  `json:"size"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}

	entries := make([]retrieval.TreeEntry, 0, len(out.Tree))
	for _, e := range out.Tree {
		entries = append(entries, retrieval.TreeEntry{Path: e.Path, Kind: e.Type, SizeHint: e.Size})
	}
	c.trees.Set(key, entries)
	return entries, nil
}

// FileContent fetches the raw bytes of one file at a ref.
func (c *Client) FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	key := owner + "/" + repo + "@" + ref + ":" + path
	if b, ok := c.contents.Get(key); ok {
		return b, nil
	}

	escaped := strings.Join(escapeSegments(path), "/")
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), escaped, url.QueryEscape(ref))
	body, err := c.getRaw(ctx, u, "application/vnd.github.raw+json")
	if err != nil {
		return nil, err
	}
	c.contents.Add(key, body)
	return body, nil
}

func escapeSegments(path string) []string {
	segs := strings.Split(path, "/")
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = url.PathEscape(s)
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.getRaw(ctx, c.baseURL+path, "application/vnd.github+json")
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// getRaw performs one idempotent GET with bounded retry and doubling delay.
// NotFound is terminal; rate-limit and 5xx responses are retried before being
// surfaced.
func (c *Client) getRaw(ctx context.Context, u, accept string) ([]byte, error) {
	var last error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, retryable, err := c.getOnce(ctx, u, accept)
		if err == nil {
			return body, nil
		}
		last = err
		if !retryable {
			return nil, err
		}
	}
	return nil, last
}

func (c *Client) getOnce(ctx context.Context, u, accept string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failures are worth one more attempt.
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return b, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("GET %s: %w", u, ErrNotFound)
	case isRateLimited(resp):
		return nil, true, fmt.Errorf("GET %s: %w", u, ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Auth failures without rate-limit markers behave like a missing repo.
		return nil, false, fmt.Errorf("GET %s: status %d: %w", u, resp.StatusCode, ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}
}

func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden &&
		strings.TrimSpace(resp.Header.Get("X-RateLimit-Remaining")) == "0"
}
