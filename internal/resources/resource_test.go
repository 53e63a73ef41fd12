package resources

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/internal/models"
)

type stubResource struct {
	name string
}

func (s *stubResource) Name() string             { return s.name }
func (s *stubResource) Disposition() Disposition { return DispositionAppend }
func (s *stubResource) Fetch(context.Context, *Watermark) (*Batch, error) {
	return nil, nil
}

func TestRegistrySelectKeepsOrder(t *testing.T) {
	reg := NewRegistry(
		&stubResource{name: "org_members"},
		&stubResource{name: "nfcore_pipelines"},
		&stubResource{name: "traffic_stats"},
	)

	selected, err := reg.Select([]string{"traffic_stats", "org_members"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "org_members", selected[0].Name())
	assert.Equal(t, "traffic_stats", selected[1].Name())
}

func TestRegistrySelectEmptyReturnsAll(t *testing.T) {
	reg := NewRegistry(&stubResource{name: "a"}, &stubResource{name: "b"})

	selected, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, selected, 2)
}

func TestRegistrySelectUnknownName(t *testing.T) {
	reg := NewRegistry(&stubResource{name: "a"})

	_, err := reg.Select([]string{"nonsense"})
	assert.Error(t, err)
}

func TestBatchNilSafe(t *testing.T) {
	var b *Batch
	assert.Equal(t, 0, b.Len())

	n, err := b.Write()
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

type stubMemberCounter struct {
	count int
	err   error
}

func (s *stubMemberCounter) CountOrgMembers(context.Context, string) (int, error) {
	return s.count, s.err
}

type capturedMemberSink struct {
	rows []*models.OrgMemberCount
}

func (s *capturedMemberSink) Append(counts []*models.OrgMemberCount) (int, error) {
	s.rows = append(s.rows, counts...)
	return len(counts), nil
}

func TestOrgMembersResourceFetch(t *testing.T) {
	sink := &capturedMemberSink{}
	res := NewOrgMembersResource(&stubMemberCounter{count: 123}, sink, "nf-core")

	batch, err := res.Fetch(context.Background(), &Watermark{})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())

	written, err := batch.Write()
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	require.Len(t, sink.rows, 1)
	assert.Equal(t, 123, sink.rows[0].NumMembers)

	ts := sink.rows[0].Timestamp
	assert.Equal(t, time.UTC, ts.Location())
	assert.Zero(t, ts.Hour())
	assert.Zero(t, ts.Minute())
}

func TestExtractContributorWeeks(t *testing.T) {
	week1 := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	week2 := week1.AddDate(0, 0, 7)

	stats := []*github.ContributorStats{
		{
			Author: &github.Contributor{
				Login:     github.String("alice"),
				AvatarURL: github.String("https://avatars.example/alice"),
			},
			Weeks: []*github.WeeklyStats{
				{Week: &github.Timestamp{Time: week1}, Commits: github.Int(3), Additions: github.Int(100), Deletions: github.Int(20)},
				{Week: &github.Timestamp{Time: week2}, Commits: github.Int(0), Additions: github.Int(0), Deletions: github.Int(0)},
			},
		},
		{
			// Ghost account, no resolvable author.
			Weeks: []*github.WeeklyStats{
				{Week: &github.Timestamp{Time: week1}, Commits: github.Int(1)},
			},
		},
	}

	rows, malformed := extractContributorWeeks("toolbox", stats)

	assert.Equal(t, 1, malformed)
	require.Len(t, rows, 1)
	assert.Equal(t, "toolbox", rows[0].PipelineName)
	assert.Equal(t, "alice", rows[0].Author)
	assert.Equal(t, week1, rows[0].WeekDate)
	assert.Equal(t, 3, rows[0].Commits)
	assert.NoError(t, rows[0].Validate())
}

func TestExtractContributorWeeksMalformedRecordTolerance(t *testing.T) {
	week := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

	var stats []*github.ContributorStats
	for i := 0; i < 100; i++ {
		cs := &github.ContributorStats{
			Author: &github.Contributor{Login: github.String(fmt.Sprintf("user%d", i))},
			Weeks: []*github.WeeklyStats{
				{Week: &github.Timestamp{Time: week}, Commits: github.Int(1)},
			},
		}
		stats = append(stats, cs)
	}
	// One record without the identity field.
	stats[42].Author = nil

	rows, malformed := extractContributorWeeks("toolbox", stats)

	assert.Equal(t, 1, malformed)
	assert.Len(t, rows, 99)
}

func TestBuildPipeline(t *testing.T) {
	created := github.Timestamp{Time: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)}
	repo := &github.Repository{
		Name:             github.String("rnaseq"),
		Description:      github.String("RNA sequencing pipeline"),
		StargazersCount:  github.Int(700),
		SubscribersCount: github.Int(60),
		ForksCount:       github.Int(500),
		OpenIssuesCount:  github.Int(12),
		Topics:           []string{"rna", "nextflow"},
		DefaultBranch:    github.String("master"),
		Archived:         github.Bool(false),
		CreatedAt:        &created,
	}

	p := buildPipeline(repo, true)

	assert.Equal(t, "rnaseq", p.Name)
	assert.Equal(t, models.CategoryPipeline, p.Category)
	assert.Equal(t, 700, p.StargazersCount)
	assert.Equal(t, 60, p.WatchersCount)
	require.NotNil(t, p.GhCreatedAt)
	assert.Equal(t, created.Time, *p.GhCreatedAt)
	assert.NoError(t, p.Validate())

	core := buildPipeline(repo, false)
	assert.Equal(t, models.CategoryCore, core.Category)
}

func TestApplyReleases(t *testing.T) {
	older := github.Timestamp{Time: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := github.Timestamp{Time: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	p := &models.Pipeline{Name: "rnaseq", Category: models.CategoryPipeline}
	releases := []*github.RepositoryRelease{
		{PublishedAt: &older},
		{PublishedAt: &newer},
		{PublishedAt: &newer, Draft: github.Bool(true)},
		{PublishedAt: &newer, Prerelease: github.Bool(true)},
	}

	applyReleases(p, releases)

	require.NotNil(t, p.NumberOfReleases)
	assert.Equal(t, 2, *p.NumberOfReleases)
	require.NotNil(t, p.LastReleaseDate)
	assert.Equal(t, newer.Time, *p.LastReleaseDate)
}
