package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/source"
)

type fakeRunLog struct {
	created  *models.IngestionRun
	finished *models.IngestionRun
}

func (f *fakeRunLog) Create(run *models.IngestionRun) error {
	f.created = run
	return nil
}

func (f *fakeRunLog) Finish(run *models.IngestionRun) error {
	f.finished = run
	return nil
}

type fakeResource struct {
	name     string
	rows     int
	fetchErr error
	writeErr error
	fetched  bool
	wrote    bool
}

func (f *fakeResource) Name() string                        { return f.name }
func (f *fakeResource) Disposition() resources.Disposition { return resources.DispositionAppend }

func (f *fakeResource) Fetch(context.Context, *resources.Watermark) (*resources.Batch, error) {
	f.fetched = true
	if f.rows == 0 {
		return nil, f.fetchErr
	}
	return resources.NewBatch(f.rows, func() (int, error) {
		f.wrote = true
		if f.writeErr != nil {
			return 0, f.writeErr
		}
		return f.rows, nil
	}), f.fetchErr
}

func TestRunnerAllResourcesSucceed(t *testing.T) {
	log := &fakeRunLog{}
	runner := NewRunner("github", log)

	result := runner.Run(context.Background(), []resources.Resource{
		&fakeResource{name: "org_members", rows: 1},
		&fakeResource{name: "traffic_stats", rows: 40},
	}, &resources.Watermark{})

	assert.Equal(t, models.RunOutcomeSuccess, result.Outcome)
	assert.Equal(t, 41, result.RowsWritten)
	assert.Empty(t, result.AbortedResources)
	assert.Equal(t, ExitSuccess, result.ExitCode())

	require.NotNil(t, log.finished)
	assert.Equal(t, models.RunOutcomeSuccess, log.finished.Outcome)
	assert.NotNil(t, log.finished.FinishedAt)
}

func TestRunnerQuotaExhaustionCommitsPartialAndContinues(t *testing.T) {
	log := &fakeRunLog{}
	runner := NewRunner("github", log)

	quotaErr := &source.QuotaExhaustedError{ResetAt: time.Now().Add(time.Hour)}
	after := &fakeResource{name: "contributor_stats", rows: 10}

	result := runner.Run(context.Background(), []resources.Resource{
		&fakeResource{name: "traffic_stats", rows: 25, fetchErr: quotaErr},
		after,
	}, &resources.Watermark{})

	assert.Equal(t, models.RunOutcomePartial, result.Outcome)
	assert.Equal(t, 35, result.RowsWritten, "partial batch must be committed")
	assert.Equal(t, []string{"traffic_stats"}, result.AbortedResources)
	assert.Equal(t, ExitPartial, result.ExitCode())
	assert.True(t, after.fetched, "later resources still run after quota abort")
}

func TestRunnerAuthFailureAbortsRun(t *testing.T) {
	log := &fakeRunLog{}
	runner := NewRunner("github", log)

	skipped := &fakeResource{name: "issue_stats", rows: 5}
	rejected := &fakeResource{name: "org_members", rows: 5, fetchErr: &source.AuthError{StatusCode: 401}}

	result := runner.Run(context.Background(), []resources.Resource{
		rejected,
		skipped,
	}, &resources.Watermark{})

	assert.Equal(t, models.RunOutcomeFailed, result.Outcome)
	assert.Equal(t, ExitFailed, result.ExitCode())
	assert.Equal(t, 0, result.RowsWritten, "rows extracted before the rejection must not be committed")
	assert.False(t, rejected.wrote, "no write is attempted on an auth failure")
	assert.False(t, skipped.fetched, "no resource runs after an auth failure")
	assert.Contains(t, result.AbortedResources, "org_members")
	assert.Contains(t, result.AbortedResources, "issue_stats")
}

func TestRunnerWriteFailureMarksResourceAborted(t *testing.T) {
	log := &fakeRunLog{}
	runner := NewRunner("github", log)

	result := runner.Run(context.Background(), []resources.Resource{
		&fakeResource{name: "traffic_stats", rows: 5, writeErr: errors.New("constraint violation")},
		&fakeResource{name: "issue_stats", rows: 3},
	}, &resources.Watermark{})

	assert.Equal(t, models.RunOutcomePartial, result.Outcome)
	assert.Equal(t, 3, result.RowsWritten)
	assert.Equal(t, []string{"traffic_stats"}, result.AbortedResources)
}

func TestRunnerAllResourcesAbortedIsFailed(t *testing.T) {
	log := &fakeRunLog{}
	runner := NewRunner("github", log)

	result := runner.Run(context.Background(), []resources.Resource{
		&fakeResource{name: "a", fetchErr: errors.New("boom")},
		&fakeResource{name: "b", fetchErr: errors.New("boom")},
	}, &resources.Watermark{})

	assert.Equal(t, models.RunOutcomeFailed, result.Outcome)
	assert.Equal(t, ExitFailed, result.ExitCode())
}

func TestPingHealthcheck(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	PingHealthcheck(context.Background(), server.URL+"/ping/abc", ExitSuccess)
	assert.Equal(t, "/ping/abc", gotPath)

	PingHealthcheck(context.Background(), server.URL+"/ping/abc", ExitPartial)
	assert.Equal(t, "/ping/abc/3", gotPath)
}

func TestPingHealthcheckNoURL(t *testing.T) {
	// Must be a no-op, not a panic.
	PingHealthcheck(context.Background(), "", ExitSuccess)
}
