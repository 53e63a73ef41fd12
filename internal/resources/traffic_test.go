package resources

import (
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitystats/statspipe/internal/models"
)

func repoFixture(name string, stars int, archived bool, pushedAgo time.Duration, now time.Time) *github.Repository {
	pushed := github.Timestamp{Time: now.Add(-pushedAgo)}
	return &github.Repository{
		Name:            github.String(name),
		StargazersCount: github.Int(stars),
		Archived:        github.Bool(archived),
		PushedAt:        &pushed,
	}
}

func TestSelectTrafficRepos(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repos := []*github.Repository{
		repoFixture("alpha", 500, false, 24*time.Hour, now),
		repoFixture("beta", 300, false, 48*time.Hour, now),
		repoFixture("gamma", 900, true, 24*time.Hour, now),
		repoFixture("delta", 800, false, 200*24*time.Hour, now),
		repoFixture("epsilon", 100, false, 24*time.Hour, now),
	}

	selected := selectTrafficRepos(repos, now, 2)

	require.Len(t, selected, 2)
	assert.Equal(t, "alpha", selected[0].GetName())
	assert.Equal(t, "beta", selected[1].GetName())
}

func TestSelectTrafficReposNoCap(t *testing.T) {
	now := time.Now()
	repos := []*github.Repository{
		repoFixture("a", 1, false, time.Hour, now),
		repoFixture("b", 2, false, time.Hour, now),
	}

	selected := selectTrafficRepos(repos, now, 0)
	assert.Len(t, selected, 2)
}

func TestSelectTrafficReposSkipsNeverPushed(t *testing.T) {
	now := time.Now()
	repos := []*github.Repository{
		{Name: github.String("empty"), StargazersCount: github.Int(50)},
	}

	assert.Empty(t, selectTrafficRepos(repos, now, 10))
}

func TestMergeTrafficDays(t *testing.T) {
	day1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	views := &github.TrafficViews{
		Views: []*github.TrafficData{
			{Timestamp: &github.Timestamp{Time: day1}, Count: github.Int(10), Uniques: github.Int(4)},
			{Timestamp: &github.Timestamp{Time: day2}, Count: github.Int(20), Uniques: github.Int(8)},
		},
	}
	clones := &github.TrafficClones{
		Clones: []*github.TrafficData{
			{Timestamp: &github.Timestamp{Time: day2}, Count: github.Int(3), Uniques: github.Int(2)},
		},
	}

	rows := mergeTrafficDays("alpha", views, clones)
	require.Len(t, rows, 2)

	assert.Equal(t, day1, rows[0].Timestamp)
	assert.Equal(t, 10, rows[0].Views)
	assert.Equal(t, 0, rows[0].Clones)

	assert.Equal(t, day2, rows[1].Timestamp)
	assert.Equal(t, 20, rows[1].Views)
	assert.Equal(t, 8, rows[1].ViewsUniques)
	assert.Equal(t, 3, rows[1].Clones)
	assert.Equal(t, 2, rows[1].ClonesUniques)
}

func TestFilterTrafficRows(t *testing.T) {
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC) }

	rows := []*models.TrafficStat{
		{PipelineName: "alpha", Timestamp: day(7), Views: 1},
		{PipelineName: "alpha", Timestamp: day(8), Views: 2},
		{PipelineName: "alpha", Timestamp: day(9), Views: 3},
		{PipelineName: "alpha", Timestamp: day(10), Views: 4}, // still running day
		{PipelineName: "alpha", Views: 5},                     // malformed, no timestamp
	}

	wm := &Watermark{TrafficByRepo: map[string]time.Time{"alpha": day(8)}}

	kept := filterTrafficRows(rows, wm, now)
	require.Len(t, kept, 1)
	assert.Equal(t, day(9), kept[0].Timestamp)
}

func TestFilterTrafficRowsNoWatermark(t *testing.T) {
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	rows := []*models.TrafficStat{
		{PipelineName: "beta", Timestamp: time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)},
	}

	kept := filterTrafficRows(rows, &Watermark{}, now)
	assert.Len(t, kept, 1)
}
