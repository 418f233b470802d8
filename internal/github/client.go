// Package github is a read-only client for the GitHub REST API covering the
// organization, repository, pull request and commit endpoints the mirror needs.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultBaseURL is the public GitHub API endpoint
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages caps how many pages an unbounded listing follows
	DefaultMaxPages = 10

	// DefaultUserAgent is sent when no other agent is configured
	DefaultUserAgent = "scm-mirror"

	// MaxPageSize is the largest page GitHub serves
	MaxPageSize = 100

	// MaxResponseSize is the maximum allowed response body (50MB)
	MaxResponseSize = 50 * 1024 * 1024

	apiVersion = "2022-11-28"
)

// Client is the set of upstream reads used by synchronization. Lookups of a
// single object return (nil, nil) when the object does not exist.
type Client interface {
	GetAuthenticatedUser(ctx context.Context, token string) (*User, error)
	ListOrganizations(ctx context.Context, token string) ([]Organization, error)
	GetOrganization(ctx context.Context, token, login string) (*Organization, error)
	ListRepositories(ctx context.Context, token, org string) ([]Repository, error)
	ListMembers(ctx context.Context, token, org string) ([]Member, error)
	ListPullRequestSummaries(ctx context.Context, token, owner, repo string, limit int) ([]PullRequestSummary, error)
	GetPullRequest(ctx context.Context, token, owner, repo string, number int) (*PullRequest, error)
	ListPullRequestFiles(ctx context.Context, token, owner, repo string, number, limit int) ([]File, error)
	ListCommits(ctx context.Context, token, owner, repo string, limit int, since time.Time) ([]Commit, error)
	GetCommit(ctx context.Context, token, owner, repo, sha string) (*Commit, error)
}

// RESTClient implements Client over HTTP.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxPages   int
}

var _ Client = (*RESTClient)(nil)

// Option configures a RESTClient
type Option func(*RESTClient) error

// WithBaseURL points the client at another endpoint, such as GitHub Enterprise
func WithBaseURL(baseURL string) Option {
	return func(c *RESTClient) error {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base URL %q", baseURL)
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *RESTClient) error {
		if httpClient == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *RESTClient) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		c.httpClient.Timeout = timeout
		return nil
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(c *RESTClient) error {
		c.userAgent = userAgent
		return nil
	}
}

// WithMaxPages caps how many pages organization listings follow
func WithMaxPages(n int) Option {
	return func(c *RESTClient) error {
		if n < 1 {
			return fmt.Errorf("max pages must be at least 1, got %d", n)
		}
		c.maxPages = n
		return nil
	}
}

// NewClient creates a GitHub REST client
func NewClient(opts ...Option) (*RESTClient, error) {
	c := &RESTClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  DefaultUserAgent,
		maxPages:   DefaultMaxPages,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// GetAuthenticatedUser returns the account owning token.
func (c *RESTClient) GetAuthenticatedUser(ctx context.Context, token string) (*User, error) {
	if err := requireNonBlank("token", token); err != nil {
		return nil, err
	}
	var user User
	if _, err := c.get(ctx, token, c.buildURL("/user", nil), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListOrganizations lists the organizations the token's owner belongs to.
func (c *RESTClient) ListOrganizations(ctx context.Context, token string) ([]Organization, error) {
	if err := requireNonBlank("token", token); err != nil {
		return nil, err
	}
	return listAll[Organization](ctx, c, token, c.buildURL("/user/orgs", url.Values{
		"per_page": {strconv.Itoa(MaxPageSize)},
	}))
}

// GetOrganization fetches one organization by login.
func (c *RESTClient) GetOrganization(ctx context.Context, token, login string) (*Organization, error) {
	if err := requireNonBlank("token", token, "organization", login); err != nil {
		return nil, err
	}
	var org Organization
	found, err := c.getOptional(ctx, token, c.buildURL("/orgs/"+url.PathEscape(login), nil), &org)
	if err != nil || !found {
		return nil, err
	}
	return &org, nil
}

// ListRepositories lists every repository of an organization.
func (c *RESTClient) ListRepositories(ctx context.Context, token, org string) ([]Repository, error) {
	if err := requireNonBlank("token", token, "organization", org); err != nil {
		return nil, err
	}
	return listAll[Repository](ctx, c, token, c.buildURL("/orgs/"+url.PathEscape(org)+"/repos", url.Values{
		"per_page": {strconv.Itoa(MaxPageSize)},
		"type":     {"all"},
		"sort":     {"updated"},
	}))
}

// ListMembers lists every member of an organization.
func (c *RESTClient) ListMembers(ctx context.Context, token, org string) ([]Member, error) {
	if err := requireNonBlank("token", token, "organization", org); err != nil {
		return nil, err
	}
	return listAll[Member](ctx, c, token, c.buildURL("/orgs/"+url.PathEscape(org)+"/members", url.Values{
		"per_page": {strconv.Itoa(MaxPageSize)},
		"role":     {"all"},
	}))
}

// ListPullRequestSummaries lists up to limit pull requests, most recently
// updated first.
func (c *RESTClient) ListPullRequestSummaries(
	ctx context.Context, token, owner, repo string, limit int,
) ([]PullRequestSummary, error) {
	if err := requireNonBlank("token", token, "owner", owner, "repository", repo); err != nil {
		return nil, err
	}
	var out []PullRequestSummary
	_, err := c.get(ctx, token, c.buildURL(repoPath(owner, repo)+"/pulls", url.Values{
		"state":     {"all"},
		"sort":      {"updated"},
		"direction": {"desc"},
		"per_page":  {strconv.Itoa(clampPageSize(limit))},
	}), &out)
	return out, err
}

// GetPullRequest fetches the detail of one pull request.
func (c *RESTClient) GetPullRequest(ctx context.Context, token, owner, repo string, number int) (*PullRequest, error) {
	if err := requireNonBlank("token", token, "owner", owner, "repository", repo); err != nil {
		return nil, err
	}
	var pr PullRequest
	found, err := c.getOptional(ctx, token, c.buildURL(repoPath(owner, repo)+"/pulls/"+strconv.Itoa(number), nil), &pr)
	if err != nil || !found {
		return nil, err
	}
	return &pr, nil
}

// ListPullRequestFiles lists up to limit files touched by a pull request.
func (c *RESTClient) ListPullRequestFiles(
	ctx context.Context, token, owner, repo string, number, limit int,
) ([]File, error) {
	if err := requireNonBlank("token", token, "owner", owner, "repository", repo); err != nil {
		return nil, err
	}
	var out []File
	_, err := c.get(ctx, token, c.buildURL(repoPath(owner, repo)+"/pulls/"+strconv.Itoa(number)+"/files", url.Values{
		"per_page": {strconv.Itoa(clampPageSize(limit))},
	}), &out)
	return out, err
}

// ListCommits lists up to limit commits newer than since, newest first. An
// empty repository yields an empty list.
func (c *RESTClient) ListCommits(
	ctx context.Context, token, owner, repo string, limit int, since time.Time,
) ([]Commit, error) {
	if err := requireNonBlank("token", token, "owner", owner, "repository", repo); err != nil {
		return nil, err
	}
	params := url.Values{"per_page": {strconv.Itoa(clampPageSize(limit))}}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339))
	}
	var out []Commit
	_, err := c.get(ctx, token, c.buildURL(repoPath(owner, repo)+"/commits", params), &out)
	if StatusCode(err) == http.StatusConflict {
		return []Commit{}, nil
	}
	return out, err
}

// GetCommit fetches one commit including its files.
func (c *RESTClient) GetCommit(ctx context.Context, token, owner, repo, sha string) (*Commit, error) {
	if err := requireNonBlank("token", token, "owner", owner, "repository", repo, "sha", sha); err != nil {
		return nil, err
	}
	var commit Commit
	found, err := c.getOptional(ctx, token, c.buildURL(repoPath(owner, repo)+"/commits/"+url.PathEscape(sha), nil), &commit)
	if err != nil || !found {
		return nil, err
	}
	return &commit, nil
}

func (c *RESTClient) buildURL(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// getOptional is get with 404 mapped to found == false.
func (c *RESTClient) getOptional(ctx context.Context, token, urlStr string, out any) (bool, error) {
	_, err := c.get(ctx, token, urlStr, out)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// get performs one authenticated GET and decodes the JSON body into out.
func (c *RESTClient) get(ctx context.Context, token, urlStr string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("github request to %s aborted: %w", urlStr, ctxErr)
		}
		return nil, NewAPIError(0, urlStr, err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, NewAPIError(0, urlStr, fmt.Sprintf("failed to read response body: %v", err))
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, NewAPIError(resp.StatusCode, urlStr,
			fmt.Sprintf("response exceeds maximum allowed size of %d bytes", MaxResponseSize))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewAPIError(resp.StatusCode, urlStr, errorMessage(resp.Status, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return nil, NewAPIError(resp.StatusCode, urlStr, fmt.Sprintf("failed to decode response: %v", err))
	}
	return resp.Header, nil
}

// listAll follows Link rel="next" until exhausted or maxPages is reached.
func listAll[T any](ctx context.Context, c *RESTClient, token, urlStr string) ([]T, error) {
	out := []T{}
	for page := 0; urlStr != "" && page < c.maxPages; page++ {
		var items []T
		headers, err := c.get(ctx, token, urlStr, &items)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		urlStr, _ = nextPage(headers)
	}
	return out, nil
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextPage(headers http.Header) (string, bool) {
	matches := linkNextPattern.FindStringSubmatch(headers.Get("Link"))
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// errorMessage prefers the "message" field of a GitHub error body.
func errorMessage(status string, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return status
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

func clampPageSize(n int) int {
	return min(max(n, 1), MaxPageSize)
}

// requireNonBlank takes name/value pairs.
func requireNonBlank(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s must not be blank", ErrInvalidArgument, pairs[i])
		}
	}
	return nil
}
