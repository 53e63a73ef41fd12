package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/config"
	"github.com/communitystats/statspipe/pkg/logger"
)

const (
	// DefaultTimeout bounds the connection dial and the wait for response
	// headers. It is applied on the transport below the rate-limit waiter,
	// not as a client timeout, so the waiter's secondary-limit sleeps (which
	// happen inside RoundTrip and routinely exceed a minute) are not cut off.
	DefaultTimeout = 30 * time.Second

	// MaxRetries bounds the retry loop for transient failures.
	MaxRetries = 3

	// RetryBaseDelay is the initial backoff delay; it doubles per attempt.
	RetryBaseDelay = time.Second
)

// Client wraps go-github with quota gating and the shared retry policy.
// The secondary-rate-limit waiter transport sleeps through short throttle
// windows; the RateLimiter guards the primary hourly quota.
type Client struct {
	gh      *github.Client
	http    *http.Client
	limiter *RateLimiter
}

// NewClient creates an authenticated GitHub client.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, &source.AuthError{Message: "API token is not configured, set " + config.EnvGitHubToken}
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: DefaultTimeout,
		}).DialContext,
		ResponseHeaderTimeout: DefaultTimeout,
	}

	waiter, err := github_ratelimit.NewRateLimitWaiter(base, github_ratelimit.WithSingleSleepLimit(time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   waiter,
			Source: ts,
		},
	}

	return &Client{
		gh:      github.NewClient(httpClient),
		http:    httpClient,
		limiter: NewRateLimiter(),
	}, nil
}

// Limiter returns the client's rate limiter.
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// Validate checks the credential with a cheap call and returns the
// authenticated login.
func (c *Client) Validate(ctx context.Context) (string, error) {
	var login string
	_, err := c.withRetry(ctx, "validate credentials", func() (*github.Response, error) {
		user, resp, err := c.gh.Users.Get(ctx, "")
		if err == nil {
			login = user.GetLogin()
		}
		return resp, err
	})
	return login, err
}

// SeedQuota queries the current quota window and primes the limiter.
func (c *Client) SeedQuota(ctx context.Context) error {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return c.wrapError("rate limit query", err)
	}
	if core := limits.GetCore(); core != nil {
		c.limiter.SetQuota(core.Remaining, core.Limit, core.Reset.Time)
		logger.Infof("Rate limit: %d/%d remaining (resets at %s)",
			core.Remaining, core.Limit, core.Reset.Format(time.RFC3339))
	}
	return nil
}

// ListOrgRepos returns every repository of the organization.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]*github.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.Repository
	for {
		var page []*github.Repository
		resp, err := c.withRetry(ctx, "list org repos", func() (*github.Response, error) {
			repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
			page = repos
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CountOrgMembers pages through the member list and returns the total.
func (c *Client) CountOrgMembers(ctx context.Context, org string) (int, error) {
	opts := &github.ListMembersOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	count := 0
	for {
		var page []*github.User
		resp, err := c.withRetry(ctx, "list org members", func() (*github.Response, error) {
			members, resp, err := c.gh.Organizations.ListMembers(ctx, org, opts)
			page = members
			return resp, err
		})
		if err != nil {
			return 0, err
		}
		count += len(page)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return count, nil
}

// TrafficViews returns the daily view breakdown of a repository.
func (c *Client) TrafficViews(ctx context.Context, org, repo string) (*github.TrafficViews, error) {
	var views *github.TrafficViews
	_, err := c.withRetry(ctx, "traffic views "+repo, func() (*github.Response, error) {
		v, resp, err := c.gh.Repositories.ListTrafficViews(ctx, org, repo, &github.TrafficBreakdownOptions{Per: "day"})
		views = v
		return resp, err
	})
	return views, err
}

// TrafficClones returns the daily clone breakdown of a repository.
func (c *Client) TrafficClones(ctx context.Context, org, repo string) (*github.TrafficClones, error) {
	var clones *github.TrafficClones
	_, err := c.withRetry(ctx, "traffic clones "+repo, func() (*github.Response, error) {
		cl, resp, err := c.gh.Repositories.ListTrafficClones(ctx, org, repo, &github.TrafficBreakdownOptions{Per: "day"})
		clones = cl
		return resp, err
	})
	return clones, err
}

// ContributorStats returns the weekly contributor breakdown of a repository.
// GitHub computes these lazily and answers 202 until ready; that is treated
// as transient and retried.
func (c *Client) ContributorStats(ctx context.Context, org, repo string) ([]*github.ContributorStats, error) {
	var stats []*github.ContributorStats
	_, err := c.withRetry(ctx, "contributor stats "+repo, func() (*github.Response, error) {
		s, resp, err := c.gh.Repositories.ListContributorsStats(ctx, org, repo)
		stats = s
		return resp, err
	})
	return stats, err
}

// ListIssues returns all issues and pull requests of a repository.
func (c *Client) ListIssues(ctx context.Context, org, repo string) ([]*github.Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.Issue
	for {
		var page []*github.Issue
		resp, err := c.withRetry(ctx, "list issues "+repo, func() (*github.Response, error) {
			issues, resp, err := c.gh.Issues.ListByRepo(ctx, org, repo, opts)
			page = issues
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListIssueComments returns the comments of one issue in creation order.
func (c *Client) ListIssueComments(ctx context.Context, org, repo string, number int) ([]*github.IssueComment, error) {
	sort := "created"
	opts := &github.IssueListCommentsOptions{
		Sort:        &sort,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*github.IssueComment
	for {
		var page []*github.IssueComment
		resp, err := c.withRetry(ctx, fmt.Sprintf("list comments %s#%d", repo, number), func() (*github.Response, error) {
			comments, resp, err := c.gh.Issues.ListComments(ctx, org, repo, number, opts)
			page = comments
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListReleases returns the releases of a repository, newest first.
func (c *Client) ListReleases(ctx context.Context, org, repo string) ([]*github.RepositoryRelease, error) {
	opts := &github.ListOptions{PerPage: 100}

	var all []*github.RepositoryRelease
	for {
		var page []*github.RepositoryRelease
		resp, err := c.withRetry(ctx, "list releases "+repo, func() (*github.Response, error) {
			releases, resp, err := c.gh.Repositories.ListReleases(ctx, org, repo, opts)
			page = releases
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// FetchPipelineIndex downloads the community pipeline name index published on
// the organization's website repository.
func (c *Client) FetchPipelineIndex(ctx context.Context, org string) ([]string, error) {
	url := fmt.Sprintf("https://raw.githubusercontent.com/%s/website/main/public/pipeline_names.json", org)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &source.TransientError{Operation: "pipeline index", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &source.NotFoundError{Resource: "pipeline index"}
	case resp.StatusCode != http.StatusOK:
		return nil, &source.TransientError{Operation: "pipeline index", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var index struct {
		Pipeline []string `json:"pipeline"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline index: %w", err)
	}
	return index.Pipeline, nil
}

// withRetry gates a request on the limiter and retries transient failures
// with bounded exponential backoff. Auth, not-found and quota errors are
// returned immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() (*github.Response, error)) (*github.Response, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := fn()
		if resp != nil {
			c.limiter.UpdateFromResponse(resp.Response)
		}
		if err == nil {
			return resp, nil
		}

		wrapped := c.wrapError(op, err)
		if !isRetryable(err) {
			return resp, wrapped
		}
		lastErr = err

		delay := RetryBaseDelay << attempt
		logger.WithError(err).Warnf("%s failed (attempt %d/%d), retrying in %s", op, attempt+1, MaxRetries, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, &source.TransientError{Operation: op, Err: lastErr}
}

// wrapError maps go-github errors onto the pipeline error taxonomy.
func (c *Client) wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &source.QuotaExhaustedError{ResetAt: rateErr.Rate.Reset.Time, Remaining: rateErr.Rate.Remaining}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &source.QuotaExhaustedError{ResetAt: time.Now().Add(abuseErr.GetRetryAfter()), Remaining: c.limiter.Remaining()}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch {
		case ghErr.Response.StatusCode == http.StatusUnauthorized:
			return &source.AuthError{StatusCode: http.StatusUnauthorized, Message: ghErr.Message}
		case ghErr.Response.StatusCode == http.StatusNotFound:
			return &source.NotFoundError{Resource: op}
		case ghErr.Response.StatusCode == http.StatusForbidden && c.limiter.Remaining() == 0:
			return &source.QuotaExhaustedError{ResetAt: c.limiter.ResetTime()}
		case ghErr.Response.StatusCode == http.StatusForbidden:
			// Permission problem, e.g. traffic data without push access.
			return &source.ForbiddenError{Resource: op}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// isRetryable reports whether the raw go-github error is worth another
// attempt: 5xx, transport failures and 202-pending stats.
func isRetryable(err error) bool {
	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return true
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return false
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode >= 500
	}

	// URL/transport errors and timeouts.
	return true
}
