package githubapi

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/internal/source"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient("test-token")
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("")
	assert.True(t, source.IsAuth(err))
}

func TestNewClientLeavesRoundTripUncapped(t *testing.T) {
	c := newTestClient(t)
	// The throttle waiter sleeps inside RoundTrip; a client-level timeout
	// would cancel any throttle wait longer than itself.
	assert.Zero(t, c.http.Timeout)
}

func ghError(status int) *github.ErrorResponse {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  http.StatusText(status),
	}
}

func TestWrapError(t *testing.T) {
	c := newTestClient(t)

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{
			name: "primary rate limit",
			err: &github.RateLimitError{
				Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(time.Hour)}},
			},
			check: source.IsQuotaExhausted,
		},
		{
			name:  "unauthorized",
			err:   ghError(http.StatusUnauthorized),
			check: source.IsAuth,
		},
		{
			name:  "not found",
			err:   ghError(http.StatusNotFound),
			check: source.IsNotFound,
		},
		{
			name:  "forbidden with quota left",
			err:   ghError(http.StatusForbidden),
			check: source.IsForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := c.wrapError("op", tt.err)
			assert.True(t, tt.check(wrapped), "got %v", wrapped)
		})
	}
}

func TestWrapErrorForbiddenWithExhaustedQuota(t *testing.T) {
	c := newTestClient(t)
	c.limiter.SetQuota(0, 5000, time.Now().Add(time.Hour))

	wrapped := c.wrapError("op", ghError(http.StatusForbidden))
	assert.True(t, source.IsQuotaExhausted(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&github.AcceptedError{}), "202 pending stats should be retried")
	assert.True(t, isRetryable(ghError(http.StatusBadGateway)))
	assert.True(t, isRetryable(errors.New("connection reset")))

	assert.False(t, isRetryable(ghError(http.StatusNotFound)))
	assert.False(t, isRetryable(&github.RateLimitError{}))
	assert.False(t, isRetryable(&github.AbuseRateLimitError{}))
}
