package resources

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/repositories"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

type issueAPI interface {
	ListIssues(ctx context.Context, org, repo string) ([]*github.Issue, error)
	ListIssueComments(ctx context.Context, org, repo string, number int) ([]*github.IssueComment, error)
}

type issueSink interface {
	Upsert(stats []*models.IssueStat) (int, error)
}

type commentBudget interface {
	HasCommentBudget() bool
}

// IssuesResource collects the lifecycle stats of every issue and pull
// request. Comment history is only fetched where the first response is still
// unknown and the comment count moved since the last run, and only while the
// quota reserve holds.
type IssuesResource struct {
	api    issueAPI
	sink   issueSink
	budget commentBudget
	org    string
	repos  []*github.Repository
}

func NewIssuesResource(api issueAPI, sink issueSink, budget commentBudget, org string, repos []*github.Repository) *IssuesResource {
	return &IssuesResource{api: api, sink: sink, budget: budget, org: org, repos: repos}
}

func (r *IssuesResource) Name() string {
	return "issue_stats"
}

func (r *IssuesResource) Disposition() Disposition {
	return DispositionMerge
}

func (r *IssuesResource) Fetch(ctx context.Context, wm *Watermark) (*Batch, error) {
	var rows []*models.IssueStat
	var fetchErr error

	commentsSkipped := 0

repos:
	for _, repo := range r.repos {
		name := repo.GetName()

		issues, err := r.api.ListIssues(ctx, r.org, name)
		switch {
		case source.IsNotFound(err):
			logger.Warnf("Repository %s not found, skipping issues", name)
			continue
		case source.IsQuotaExhausted(err) || source.IsAuth(err):
			fetchErr = err
			break repos
		case err != nil:
			logger.WithError(err).Warnf("Issue listing for %s failed, skipping", name)
			continue
		}

		for _, is := range issues {
			st := buildIssueStat(name, is)
			if err := st.Validate(); err != nil {
				logger.WithError(err).Warnf("Skipping malformed issue record in %s", name)
				continue
			}

			var prior *repositories.PriorIssueState
			if wm != nil {
				if p, ok := wm.PriorIssues[name][st.IssueNumber]; ok {
					prior = &p
				}
			}

			if prior != nil {
				st.FirstResponseSeconds = prior.FirstResponseSeconds
				st.FirstResponder = prior.FirstResponder
			}

			if !needsCommentFetch(st, prior) {
				rows = append(rows, st)
				continue
			}
			if !r.budget.HasCommentBudget() {
				commentsSkipped++
				rows = append(rows, st)
				continue
			}

			comments, err := r.api.ListIssueComments(ctx, r.org, name, st.IssueNumber)
			switch {
			case source.IsQuotaExhausted(err) || source.IsAuth(err):
				rows = append(rows, st)
				fetchErr = err
				break repos
			case err != nil:
				logger.WithError(err).Warnf("Comment fetch for %s#%d failed, keeping prior state", name, st.IssueNumber)
			default:
				applyFirstResponse(st, comments)
			}
			rows = append(rows, st)
		}
	}

	if commentsSkipped > 0 {
		logger.Warnf("Comment quota reserve reached, kept prior response state for %d issues", commentsSkipped)
	}

	batch := NewBatch(len(rows), func() (int, error) {
		return r.sink.Upsert(rows)
	})
	return batch, fetchErr
}

// needsCommentFetch reports whether comment history could change the stored
// row. Once the first response is known it never changes, and an unchanged
// comment count means nothing new arrived.
func needsCommentFetch(st *models.IssueStat, prior *repositories.PriorIssueState) bool {
	if st.NumComments == 0 {
		return false
	}
	if prior == nil {
		return true
	}
	if prior.FirstResponseSeconds != nil {
		return false
	}
	return prior.NumComments != st.NumComments
}

func buildIssueStat(repo string, is *github.Issue) *models.IssueStat {
	issueType := models.IssueTypeIssue
	if is.IsPullRequest() {
		issueType = models.IssueTypePR
	}

	st := &models.IssueStat{
		PipelineName: repo,
		IssueNumber:  is.GetNumber(),
		IssueType:    issueType,
		State:        is.GetState(),
		CreatedBy:    is.GetUser().GetLogin(),
		CreatedAt:    is.GetCreatedAt().Time,
		NumComments:  is.GetComments(),
		HTMLURL:      is.GetHTMLURL(),
	}
	if ts := is.GetUpdatedAt(); !ts.IsZero() {
		t := ts.Time
		st.UpdatedAt = &t
	}
	if ts := is.GetClosedAt(); !ts.IsZero() {
		t := ts.Time
		st.ClosedAt = &t
		wait := t.Sub(st.CreatedAt).Seconds()
		st.ClosedWaitSeconds = &wait
	}
	return st
}

// applyFirstResponse fills the first-response fields from the earliest
// comment left by someone other than the issue author.
func applyFirstResponse(st *models.IssueStat, comments []*github.IssueComment) {
	var first *github.IssueComment
	for _, c := range comments {
		login := c.GetUser().GetLogin()
		if login == "" || login == st.CreatedBy {
			continue
		}
		created := c.GetCreatedAt()
		if created.IsZero() {
			continue
		}
		if first == nil || created.Time.Before(first.GetCreatedAt().Time) {
			first = c
		}
	}
	if first == nil {
		return
	}

	seconds := first.GetCreatedAt().Time.Sub(st.CreatedAt).Seconds()
	responder := first.GetUser().GetLogin()
	st.FirstResponseSeconds = &seconds
	st.FirstResponder = &responder
}
