package twitterstats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/source"
)

type capturedSink struct {
	rows []*models.AccountStat
}

func (s *capturedSink) Append(stats []*models.AccountStat) (int, error) {
	s.rows = append(s.rows, stats...)
	return len(stats), nil
}

func newTestResource(serverURL string) (*AccountResource, *capturedSink) {
	sink := &capturedSink{}
	res := NewAccountResource("token", "nf_core", sink)
	res.baseURL = serverURL
	return res, sink
}

func TestAccountResourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/by/username/nf_core", r.URL.Path)
		assert.Equal(t, "public_metrics", r.URL.Query().Get("user.fields"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"1","username":"nf_core","public_metrics":{
			"followers_count":9000,"following_count":120,"tweet_count":3400,"listed_count":85}}}`))
	}))
	defer server.Close()

	res, sink := newTestResource(server.URL)

	batch, err := res.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())

	_, err = batch.Write()
	require.NoError(t, err)
	require.Len(t, sink.rows, 1)

	stat := sink.rows[0]
	assert.Equal(t, 9000, stat.FollowersCount)
	assert.Equal(t, 120, stat.FollowingCount)
	assert.Equal(t, 3400, stat.TweetCount)
	assert.Equal(t, 85, stat.ListedCount)
	assert.Zero(t, stat.Timestamp.Hour())
}

func TestAccountResourceAuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	res, _ := newTestResource(server.URL)

	_, err := res.Fetch(context.Background(), nil)
	assert.True(t, source.IsAuth(err))
}

func TestAccountResourceRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", "1767225600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	res, _ := newTestResource(server.URL)

	_, err := res.Fetch(context.Background(), nil)
	assert.True(t, source.IsQuotaExhausted(err))
}

func TestAccountResourceUnknownUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"title":"Not Found Error"}]}`))
	}))
	defer server.Close()

	res, _ := newTestResource(server.URL)

	_, err := res.Fetch(context.Background(), nil)
	assert.True(t, source.IsNotFound(err))
}
