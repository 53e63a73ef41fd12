package slackstats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/source"
)

type stubSlackAPI struct {
	users    []slack.User
	billable map[string]slack.BillingActive
	usersErr error
	authErr  error
}

func (s *stubSlackAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return &slack.AuthTestResponse{Team: "workspace"}, nil
}

func (s *stubSlackAPI) GetUsersContext(context.Context, ...slack.GetUsersOption) ([]slack.User, error) {
	return s.users, s.usersErr
}

func (s *stubSlackAPI) GetBillableInfoForTeamContext(context.Context) (map[string]slack.BillingActive, error) {
	return s.billable, nil
}

type capturedSink struct {
	rows []*models.WorkspaceStat
}

func (s *capturedSink) Append(stats []*models.WorkspaceStat) (int, error) {
	s.rows = append(s.rows, stats...)
	return len(stats), nil
}

func user(id string, deleted, bot bool) slack.User {
	return slack.User{ID: id, Deleted: deleted, IsBot: bot}
}

func TestWorkspaceResourceFetch(t *testing.T) {
	api := &stubSlackAPI{
		users: []slack.User{
			user("U1", false, false),
			user("U2", false, false),
			user("U3", true, false),       // deactivated
			user("B1", false, true),       // bot
			user("USLACKBOT", false, false),
		},
		billable: map[string]slack.BillingActive{
			"U1": {BillingActive: true},
			"U2": {BillingActive: false},
		},
	}
	sink := &capturedSink{}

	res := NewWorkspaceResource(api, sink)
	assert.Equal(t, "workspace_stats", res.Name())
	assert.Equal(t, resources.DispositionAppend, res.Disposition())

	batch, err := res.Fetch(context.Background(), nil)
	require.NoError(t, err)

	_, err = batch.Write()
	require.NoError(t, err)
	require.Len(t, sink.rows, 1)

	stat := sink.rows[0]
	assert.Equal(t, 2, stat.TotalUsers)
	assert.Equal(t, 1, stat.ActiveUsers)
	assert.Equal(t, 1, stat.InactiveUsers)
	assert.Zero(t, stat.Timestamp.Hour())
	assert.Equal(t, time.UTC, stat.Timestamp.Location())
}

func TestWorkspaceResourceAuthFailure(t *testing.T) {
	api := &stubSlackAPI{authErr: errors.New("invalid_auth")}

	res := NewWorkspaceResource(api, &capturedSink{})
	_, err := res.Fetch(context.Background(), nil)

	assert.True(t, source.IsAuth(err))
}

func TestWrapErrorRateLimited(t *testing.T) {
	err := wrapError("list users", &slack.RateLimitedError{RetryAfter: 30 * time.Second})
	assert.True(t, source.IsQuotaExhausted(err))
}

func TestWrapErrorTransient(t *testing.T) {
	err := wrapError("list users", errors.New("connection reset"))

	var transient *source.TransientError
	assert.ErrorAs(t, err, &transient)
}
