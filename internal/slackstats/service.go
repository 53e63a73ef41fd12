// Package slackstats snapshots workspace membership and activity. Activity
// follows the workspace's billing definition of active, which is the closest
// thing the API offers to "used the workspace recently".
package slackstats

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/resources"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

// SlackAPI is the slice of the Slack client the resource needs.
type SlackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
	GetBillableInfoForTeamContext(ctx context.Context) (map[string]slack.BillingActive, error)
}

type workspaceSink interface {
	Append(stats []*models.WorkspaceStat) (int, error)
}

// WorkspaceResource is the single resource of the slack pipeline.
type WorkspaceResource struct {
	api  SlackAPI
	sink workspaceSink
}

func NewWorkspaceResource(api SlackAPI, sink workspaceSink) *WorkspaceResource {
	return &WorkspaceResource{api: api, sink: sink}
}

func (r *WorkspaceResource) Name() string {
	return "workspace_stats"
}

func (r *WorkspaceResource) Disposition() resources.Disposition {
	return resources.DispositionAppend
}

func (r *WorkspaceResource) Fetch(ctx context.Context, _ *resources.Watermark) (*resources.Batch, error) {
	auth, err := r.api.AuthTestContext(ctx)
	if err != nil {
		return nil, wrapError("auth test", err)
	}
	logger.Debugf("Authenticated against workspace %s", auth.Team)

	users, err := r.api.GetUsersContext(ctx)
	if err != nil {
		return nil, wrapError("list users", err)
	}

	billable, err := r.api.GetBillableInfoForTeamContext(ctx)
	if err != nil {
		return nil, wrapError("billable info", err)
	}

	stat := buildWorkspaceStat(users, billable, time.Now())
	return resources.NewBatch(1, func() (int, error) {
		return r.sink.Append([]*models.WorkspaceStat{stat})
	}), nil
}

// buildWorkspaceStat counts real members (no bots, no deactivated accounts)
// and splits them by billing activity. The timestamp is truncated to the UTC
// day so a re-run does not double-count.
func buildWorkspaceStat(users []slack.User, billable map[string]slack.BillingActive, now time.Time) *models.WorkspaceStat {
	total := 0
	active := 0
	for _, u := range users {
		if u.Deleted || u.IsBot || u.ID == "USLACKBOT" {
			continue
		}
		total++
		if billable[u.ID].BillingActive {
			active++
		}
	}

	day := now.UTC()
	return &models.WorkspaceStat{
		Timestamp:     time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		TotalUsers:    total,
		ActiveUsers:   active,
		InactiveUsers: total - active,
	}
}

// wrapError maps Slack API errors onto the shared error taxonomy.
func wrapError(op string, err error) error {
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return &source.QuotaExhaustedError{ResetAt: time.Now().Add(rateErr.RetryAfter)}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid_auth"),
		strings.Contains(msg, "not_authed"),
		strings.Contains(msg, "token_revoked"),
		strings.Contains(msg, "account_inactive"):
		return &source.AuthError{Message: msg}
	case strings.Contains(msg, "ratelimited"):
		return &source.QuotaExhaustedError{ResetAt: time.Now().Add(time.Minute)}
	}

	return &source.TransientError{Operation: op, Err: err}
}
