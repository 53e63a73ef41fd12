package githubapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// AuthenticatedQuota is the hourly request budget of an authenticated token.
	AuthenticatedQuota = 5000

	// ProactiveRate throttles outbound requests to ~4300/hour so a single run
	// cannot burn the whole window by itself.
	ProactiveRate = 1.2

	// MinQuotaBuffer is the remaining-request floor below which the limiter
	// sleeps until the quota window resets.
	MinQuotaBuffer = 100

	// CommentQuotaReserve is the budget kept back from comment fetching:
	// comment-derived issue fields are only refreshed while more than this
	// many requests remain.
	CommentQuotaReserve = 500

	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateLimit     = "X-RateLimit-Limit"
	headerRateReset     = "X-RateLimit-Reset"
)

// RateLimiter gates every outbound GitHub request. It combines a proactive
// token bucket with reactive tracking of the X-RateLimit headers. State is
// process-local and reset per run.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	minBuffer int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		remaining: AuthenticatedQuota,
		limit:     AuthenticatedQuota,
		bucket:    rate.NewLimiter(rate.Limit(ProactiveRate), 1),
		minBuffer: MinQuotaBuffer,
	}
}

// Wait blocks until it is safe to make a request: first the token bucket,
// then a sleep until reset if the tracked quota is below the safety buffer.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	if remaining < r.minBuffer && time.Now().Before(resetTime) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(resetTime)):
		}
	}

	return nil
}

// UpdateFromResponse updates quota state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(headerRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}
	if limit := resp.Header.Get(headerRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			r.limit = val
		}
	}
	if reset := resp.Header.Get(headerRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}
}

// SetQuota seeds the limiter from the rate-limit endpoint at run start.
func (r *RateLimiter) SetQuota(remaining, limit int, resetAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.limit = limit
	r.resetTime = resetAt
}

// Remaining returns the tracked remaining request count.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// ResetTime returns the tracked quota reset time.
func (r *RateLimiter) ResetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetTime
}

// HasCommentBudget reports whether enough quota remains to spend requests on
// comment history.
func (r *RateLimiter) HasCommentBudget() bool {
	return r.Remaining() > CommentQuotaReserve
}
