package resources

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

type pipelineAPI interface {
	FetchPipelineIndex(ctx context.Context, org string) ([]string, error)
	ListReleases(ctx context.Context, org, repo string) ([]*github.RepositoryRelease, error)
}

type pipelineSink interface {
	ReplaceAll(pipelines []*models.Pipeline) (int, error)
}

// PipelinesResource snapshots the metadata of every repository in the
// organization. The table is replaced wholesale, so the extraction must
// complete: a partial snapshot is never committed.
type PipelinesResource struct {
	api   pipelineAPI
	sink  pipelineSink
	org   string
	repos []*github.Repository
}

func NewPipelinesResource(api pipelineAPI, sink pipelineSink, org string, repos []*github.Repository) *PipelinesResource {
	return &PipelinesResource{api: api, sink: sink, org: org, repos: repos}
}

func (r *PipelinesResource) Name() string {
	return "nfcore_pipelines"
}

func (r *PipelinesResource) Disposition() Disposition {
	return DispositionReplace
}

func (r *PipelinesResource) Fetch(ctx context.Context, _ *Watermark) (*Batch, error) {
	names, err := r.api.FetchPipelineIndex(ctx, r.org)
	if err != nil {
		return nil, err
	}
	isPipeline := make(map[string]bool, len(names))
	for _, n := range names {
		isPipeline[n] = true
	}

	var rows []*models.Pipeline
	for _, repo := range r.repos {
		p := buildPipeline(repo, isPipeline[repo.GetName()])
		if err := p.Validate(); err != nil {
			logger.WithError(err).Warnf("Skipping malformed repository record %q", repo.GetName())
			continue
		}

		if p.Category == models.CategoryPipeline {
			releases, err := r.api.ListReleases(ctx, r.org, p.Name)
			switch {
			case source.IsNotFound(err):
				// Repository vanished between listing and now.
			case err != nil:
				return nil, err
			default:
				applyReleases(p, releases)
			}
		}

		rows = append(rows, p)
	}

	return NewBatch(len(rows), func() (int, error) {
		return r.sink.ReplaceAll(rows)
	}), nil
}

func buildPipeline(repo *github.Repository, inIndex bool) *models.Pipeline {
	category := models.CategoryCore
	if inIndex {
		category = models.CategoryPipeline
	}

	p := &models.Pipeline{
		Name:            repo.GetName(),
		Description:     repo.GetDescription(),
		StargazersCount: repo.GetStargazersCount(),
		WatchersCount:   repo.GetSubscribersCount(),
		ForksCount:      repo.GetForksCount(),
		OpenIssuesCount: repo.GetOpenIssuesCount(),
		Topics:          repo.Topics,
		DefaultBranch:   repo.GetDefaultBranch(),
		Archived:        repo.GetArchived(),
		Category:        category,
	}
	if ts := repo.GetCreatedAt(); !ts.IsZero() {
		t := ts.Time
		p.GhCreatedAt = &t
	}
	if ts := repo.GetUpdatedAt(); !ts.IsZero() {
		t := ts.Time
		p.GhUpdatedAt = &t
	}
	if ts := repo.GetPushedAt(); !ts.IsZero() {
		t := ts.Time
		p.GhPushedAt = &t
	}
	return p
}

// applyReleases fills the release summary fields, ignoring drafts and
// prereleases.
func applyReleases(p *models.Pipeline, releases []*github.RepositoryRelease) {
	count := 0
	for _, rel := range releases {
		if rel.GetDraft() || rel.GetPrerelease() {
			continue
		}
		count++
		if ts := rel.GetPublishedAt(); !ts.IsZero() {
			if p.LastReleaseDate == nil || ts.Time.After(*p.LastReleaseDate) {
				t := ts.Time
				p.LastReleaseDate = &t
			}
		}
	}
	p.NumberOfReleases = &count
}
