package resources

import (
	"context"
	"time"

	"github.com/communitystats/statspipe/internal/models"
)

type memberCounter interface {
	CountOrgMembers(ctx context.Context, org string) (int, error)
}

type memberSink interface {
	Append(counts []*models.OrgMemberCount) (int, error)
}

// OrgMembersResource snapshots the organization member count. One row per
// run day; the timestamp is truncated to the UTC day so a re-run does not
// double-count.
type OrgMembersResource struct {
	api  memberCounter
	sink memberSink
	org  string
}

func NewOrgMembersResource(api memberCounter, sink memberSink, org string) *OrgMembersResource {
	return &OrgMembersResource{api: api, sink: sink, org: org}
}

func (r *OrgMembersResource) Name() string {
	return "org_members"
}

func (r *OrgMembersResource) Disposition() Disposition {
	return DispositionAppend
}

func (r *OrgMembersResource) Fetch(ctx context.Context, _ *Watermark) (*Batch, error) {
	count, err := r.api.CountOrgMembers(ctx, r.org)
	if err != nil {
		return nil, err
	}

	row := &models.OrgMemberCount{
		Timestamp:  dayStart(time.Now()),
		NumMembers: count,
	}
	return NewBatch(1, func() (int, error) {
		return r.sink.Append([]*models.OrgMemberCount{row})
	}), nil
}

// dayStart truncates a time to midnight UTC.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
