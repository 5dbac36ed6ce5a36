// Package github queries the GitHub API for the branches, tags and
// revisions the version resolver and shell completion need.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
	"github.com/a-kenji/flake-edit/internal/logger"
)

const (
	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the retry budget for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries, doubled per
	// attempt.
	RetryDelay = time.Second

	// cacheMaxAge bounds how stale cached refs may get.
	cacheMaxAge = 24 * time.Hour

	perPage = 100
)

var _ driven.Forge = (*Client)(nil)

// Client implements the forge port against the GitHub API. A token is
// optional, anonymous access just has a far smaller quota. A RefCache
// may be attached to serve repeated ref listings without the network.
type Client struct {
	token       string
	host        string
	gh          *gh.Client
	rateLimiter *RateLimiter
	cache       driven.RefCache
}

// NewClient builds a GitHub client. host selects a GitHub Enterprise
// instance, empty means github.com.
func NewClient(token, host string, cache driven.RefCache) *Client {
	quota := AuthenticatedQuota
	if token == "" {
		quota = AnonymousQuota
	}
	return &Client{
		token:       token,
		host:        host,
		rateLimiter: NewRateLimiter(quota),
		cache:       cache,
	}
}

// ensureClient initializes the go-github client on first use.
func (c *Client) ensureClient(ctx context.Context) error {
	if c.gh != nil {
		return nil
	}
	hc := &http.Client{Timeout: DefaultTimeout}
	if c.token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = DefaultTimeout
	}
	client := gh.NewClient(hc)
	if c.host != "" {
		base := "https://" + c.host + "/api/v3/"
		var err error
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return fmt.Errorf("enterprise host %q: %w", c.host, err)
		}
	}
	c.gh = client
	return nil
}

// Branches lists the repository's branch names.
func (c *Client) Branches(ctx context.Context, owner, repo string) ([]string, error) {
	if refs, ok := c.cachedRefs("branches", owner, repo); ok {
		return refs, nil
	}
	var names []string
	err := c.paginate(ctx, owner, repo, func(ctx context.Context, page int) (int, error) {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, owner, repo,
			&gh.BranchListOptions{ListOptions: gh.ListOptions{Page: page, PerPage: perPage}})
		if err != nil {
			return 0, c.wrapError(err, owner, repo)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		return resp.NextPage, c.updateRateLimit(resp)
	})
	if err != nil {
		return nil, err
	}
	c.storeRefs("branches", owner, repo, names)
	return names, nil
}

// Tags lists the repository's tag names, newest first as the API
// returns them.
func (c *Client) Tags(ctx context.Context, owner, repo string) ([]string, error) {
	if refs, ok := c.cachedRefs("tags", owner, repo); ok {
		return refs, nil
	}
	var names []string
	err := c.paginate(ctx, owner, repo, func(ctx context.Context, page int) (int, error) {
		tags, resp, err := c.gh.Repositories.ListTags(ctx, owner, repo,
			&gh.ListOptions{Page: page, PerPage: perPage})
		if err != nil {
			return 0, c.wrapError(err, owner, repo)
		}
		for _, t := range tags {
			names = append(names, t.GetName())
		}
		return resp.NextPage, c.updateRateLimit(resp)
	})
	if err != nil {
		return nil, err
	}
	c.storeRefs("tags", owner, repo, names)
	return names, nil
}

// RevOf resolves a ref name to its commit sha. An empty ref resolves
// the repository's default branch.
func (c *Client) RevOf(ctx context.Context, owner, repo, ref string) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}
	if ref == "" {
		var err error
		ref, err = c.defaultBranch(ctx, owner, repo)
		if err != nil {
			return "", err
		}
	}
	var sha string
	err := c.withRetry(ctx, owner, repo, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		commit, resp, err := c.gh.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
		if err != nil {
			return c.wrapError(err, owner, repo)
		}
		sha = commit
		return c.updateRateLimit(resp)
	})
	return sha, err
}

func (c *Client) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var branch string
	err := c.withRetry(ctx, owner, repo, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		repository, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return c.wrapError(err, owner, repo)
		}
		branch = repository.GetDefaultBranch()
		return c.updateRateLimit(resp)
	})
	return branch, err
}

// paginate drives a paged listing under the rate limiter and the
// retry policy.
func (c *Client) paginate(ctx context.Context, owner, repo string,
	fetch func(ctx context.Context, page int) (int, error)) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	page := 1
	for page != 0 {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		var next int
		err := c.withRetry(ctx, owner, repo, func(ctx context.Context) error {
			var err error
			next, err = fetch(ctx, page)
			return err
		})
		if err != nil {
			return err
		}
		page = next
	}
	return nil
}

// withRetry retries transient failures with doubling delays, then
// surfaces the error as a domain network error.
func (c *Client) withRetry(ctx context.Context, owner, repo string,
	op func(ctx context.Context) error) error {
	delay := RetryDelay
	var err error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("github: retrying %s/%s (attempt %d)", owner, repo, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !isTransient(err) {
			break
		}
	}
	if IsNotFound(err) {
		return err
	}
	return &domain.NetworkError{
		Transient: isTransient(err),
		Remote:    owner + "/" + repo,
		Err:       err,
	}
}

// wrapError converts go-github errors to this package's error types.
func (c *Client) wrapError(err error, owner, repo string) error {
	if err == nil {
		return nil
	}
	var rlErr *gh.RateLimitError
	if errors.As(err, &rlErr) {
		return &RateLimitError{
			ResetAt:   c.rateLimiter.ResetTime(),
			Remaining: c.rateLimiter.Remaining(),
		}
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		if ghErr.Response != nil && ghErr.Response.StatusCode == 404 {
			return fmt.Errorf("%w: %s/%s", ErrRepoNotFound, owner, repo)
		}
		apiErr := &APIError{Message: ghErr.Message}
		if ghErr.Response != nil {
			apiErr.StatusCode = ghErr.Response.StatusCode
		}
		return apiErr
	}
	return err
}

func (c *Client) updateRateLimit(resp *gh.Response) error {
	if resp != nil {
		c.rateLimiter.UpdateFromResponse(resp.Response)
	}
	return nil
}

func (c *Client) cachedRefs(kind, owner, repo string) ([]string, bool) {
	if c.cache == nil {
		return nil, false
	}
	refs, ok, err := c.cache.Refs(kind+"."+c.hostKey(), owner, repo, cacheMaxAge)
	if err != nil {
		logger.Debug("github: ref cache read: %v", err)
		return nil, false
	}
	return refs, ok
}

func (c *Client) storeRefs(kind, owner, repo string, refs []string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(kind+"."+c.hostKey(), owner, repo, refs); err != nil {
		logger.Debug("github: ref cache write: %v", err)
	}
}

func (c *Client) hostKey() string {
	if c.host == "" {
		return "github.com"
	}
	return c.host
}
