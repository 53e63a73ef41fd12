package resources

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

type contributorAPI interface {
	ContributorStats(ctx context.Context, org, repo string) ([]*github.ContributorStats, error)
}

type contributorSink interface {
	Upsert(stats []*models.ContributorWeekStat) (int, error)
}

// ContributorsResource collects per-contributor weekly commit activity.
// GitHub recomputes recent weeks, so rows merge by
// (pipeline_name, author, week_date) and later runs overwrite earlier values.
type ContributorsResource struct {
	api   contributorAPI
	sink  contributorSink
	org   string
	repos []*github.Repository
}

func NewContributorsResource(api contributorAPI, sink contributorSink, org string, repos []*github.Repository) *ContributorsResource {
	return &ContributorsResource{api: api, sink: sink, org: org, repos: repos}
}

func (r *ContributorsResource) Name() string {
	return "contributor_stats"
}

func (r *ContributorsResource) Disposition() Disposition {
	return DispositionMerge
}

func (r *ContributorsResource) Fetch(ctx context.Context, _ *Watermark) (*Batch, error) {
	var rows []*models.ContributorWeekStat
	var fetchErr error

	for _, repo := range r.repos {
		name := repo.GetName()

		stats, err := r.api.ContributorStats(ctx, r.org, name)
		switch {
		case source.IsNotFound(err):
			logger.Warnf("Repository %s not found, skipping contributors", name)
			continue
		case source.IsQuotaExhausted(err) || source.IsAuth(err):
			fetchErr = err
		case err != nil:
			// Usually stats still pending after the retry budget.
			logger.WithError(err).Warnf("Contributor stats for %s unavailable, skipping", name)
			continue
		default:
			extracted, malformed := extractContributorWeeks(name, stats)
			if malformed > 0 {
				logger.Warnf("Skipped %d malformed contributor records in %s", malformed, name)
			}
			rows = append(rows, extracted...)
			continue
		}
		break
	}

	batch := NewBatch(len(rows), func() (int, error) {
		return r.sink.Upsert(rows)
	})
	return batch, fetchErr
}

// extractContributorWeeks flattens the per-contributor week series, dropping
// weeks with no activity and records with no resolvable author.
func extractContributorWeeks(repo string, stats []*github.ContributorStats) ([]*models.ContributorWeekStat, int) {
	var rows []*models.ContributorWeekStat
	malformed := 0

	for _, cs := range stats {
		author := cs.GetAuthor().GetLogin()
		if author == "" {
			malformed++
			continue
		}
		avatar := cs.GetAuthor().GetAvatarURL()

		for _, week := range cs.Weeks {
			if week.Week == nil {
				malformed++
				continue
			}
			if week.GetCommits() == 0 && week.GetAdditions() == 0 && week.GetDeletions() == 0 {
				continue
			}
			rows = append(rows, &models.ContributorWeekStat{
				PipelineName: repo,
				Author:       author,
				AvatarURL:    avatar,
				WeekDate:     week.Week.Time.UTC(),
				Commits:      week.GetCommits(),
				Additions:    week.GetAdditions(),
				Deletions:    week.GetDeletions(),
			})
		}
	}

	return rows, malformed
}
