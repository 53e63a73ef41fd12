// Package twitterstats snapshots the public metrics of one X account via the
// v2 users lookup endpoint.
package twitterstats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

const (
	defaultBaseURL = "https://api.twitter.com"
	requestTimeout = 30 * time.Second

	maxRetries     = 3
	retryBaseDelay = time.Second
)

type accountSink interface {
	Append(stats []*models.AccountStat) (int, error)
}

// AccountResource is the single resource of the twitter pipeline.
type AccountResource struct {
	http     *http.Client
	baseURL  string
	token    string
	username string
	sink     accountSink
}

func NewAccountResource(token, username string, sink accountSink) *AccountResource {
	return &AccountResource{
		http:     &http.Client{Timeout: requestTimeout},
		baseURL:  defaultBaseURL,
		token:    token,
		username: username,
		sink:     sink,
	}
}

func (r *AccountResource) Name() string {
	return "account_stats"
}

func (r *AccountResource) Disposition() resources.Disposition {
	return resources.DispositionAppend
}

func (r *AccountResource) Fetch(ctx context.Context, _ *resources.Watermark) (*resources.Batch, error) {
	metrics, err := r.lookupMetrics(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stat := &models.AccountStat{
		Timestamp:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		FollowersCount: metrics.Followers,
		FollowingCount: metrics.Following,
		TweetCount:     metrics.Tweets,
		ListedCount:    metrics.Listed,
	}

	return resources.NewBatch(1, func() (int, error) {
		return r.sink.Append([]*models.AccountStat{stat})
	}), nil
}

type publicMetrics struct {
	Followers int `json:"followers_count"`
	Following int `json:"following_count"`
	Tweets    int `json:"tweet_count"`
	Listed    int `json:"listed_count"`
}

// lookupMetrics fetches the account's public metrics, retrying transport
// errors and 5xx responses with bounded exponential backoff.
func (r *AccountResource) lookupMetrics(ctx context.Context) (*publicMetrics, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			logger.WithError(lastErr).Warnf("User lookup failed (attempt %d/%d), retrying in %s", attempt, maxRetries, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		metrics, retryable, err := r.doLookup(ctx)
		if err == nil {
			return metrics, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, &source.TransientError{Operation: "user lookup", Err: lastErr}
}

func (r *AccountResource) doLookup(ctx context.Context) (*publicMetrics, bool, error) {
	url := fmt.Sprintf("%s/2/users/by/username/%s?user.fields=public_metrics", r.baseURL, r.username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, &source.AuthError{StatusCode: resp.StatusCode, Message: "bearer token rejected"}
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, &source.NotFoundError{Resource: "account " + r.username}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, &source.QuotaExhaustedError{ResetAt: rateResetTime(resp)}
	default:
		return nil, resp.StatusCode >= 500, fmt.Errorf("user lookup: status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			PublicMetrics publicMetrics `json:"public_metrics"`
		} `json:"data"`
		Errors []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("failed to decode user lookup response: %w", err)
	}
	if len(body.Errors) > 0 {
		return nil, false, &source.NotFoundError{Resource: "account " + r.username}
	}

	return &body.Data.PublicMetrics, false, nil
}

func rateResetTime(resp *http.Response) time.Time {
	if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			return time.Unix(val, 0)
		}
	}
	return time.Now().Add(15 * time.Minute)
}
