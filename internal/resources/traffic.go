package resources

import (
	"context"
	"sort"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/communitystats/statspipe/internal/models"
	"github.com/communitystats/statspipe/internal/source"
	"github.com/communitystats/statspipe/pkg/logger"
)

// TrafficActiveWindow bounds traffic sampling to repositories pushed to
// within this window. Two calls per repository make traffic the most
// quota-sensitive per-repo fetch, so dormant repositories are not polled.
const TrafficActiveWindow = 180 * 24 * time.Hour

type trafficAPI interface {
	TrafficViews(ctx context.Context, org, repo string) (*github.TrafficViews, error)
	TrafficClones(ctx context.Context, org, repo string) (*github.TrafficClones, error)
}

type trafficSink interface {
	Append(stats []*models.TrafficStat) (int, error)
}

// TrafficResource collects daily view and clone counts. GitHub only serves
// a rolling 14-day window, so each run captures what it can and the append
// key deduplicates the overlap with prior runs.
type TrafficResource struct {
	api   trafficAPI
	sink  trafficSink
	org   string
	repos []*github.Repository
	topN  int
}

func NewTrafficResource(api trafficAPI, sink trafficSink, org string, repos []*github.Repository, topN int) *TrafficResource {
	return &TrafficResource{api: api, sink: sink, org: org, repos: repos, topN: topN}
}

func (r *TrafficResource) Name() string {
	return "traffic_stats"
}

func (r *TrafficResource) Disposition() Disposition {
	return DispositionAppend
}

func (r *TrafficResource) Fetch(ctx context.Context, wm *Watermark) (*Batch, error) {
	candidates := selectTrafficRepos(r.repos, time.Now(), r.topN)
	logger.Infof("Sampling traffic for %d of %d repositories", len(candidates), len(r.repos))

	var rows []*models.TrafficStat
	var fetchErr error

	for _, repo := range candidates {
		name := repo.GetName()

		views, err := r.api.TrafficViews(ctx, r.org, name)
		if skip, fatal := trafficFetchErr(name, err); skip {
			continue
		} else if fatal {
			fetchErr = err
			break
		}

		clones, err := r.api.TrafficClones(ctx, r.org, name)
		if skip, fatal := trafficFetchErr(name, err); skip {
			continue
		} else if fatal {
			fetchErr = err
			break
		}

		merged := mergeTrafficDays(name, views, clones)
		rows = append(rows, filterTrafficRows(merged, wm, time.Now())...)
	}

	batch := NewBatch(len(rows), func() (int, error) {
		return r.sink.Append(rows)
	})
	return batch, fetchErr
}

// trafficFetchErr classifies a per-repository fetch error. Missing or
// forbidden repositories are skipped; quota exhaustion ends the resource with
// whatever was collected so far.
func trafficFetchErr(repo string, err error) (skip, fatal bool) {
	switch {
	case err == nil:
		return false, false
	case source.IsNotFound(err):
		logger.Warnf("Repository %s not found, skipping traffic", repo)
		return true, false
	case source.IsForbidden(err):
		logger.Warnf("No push access to %s, skipping traffic", repo)
		return true, false
	case source.IsQuotaExhausted(err) || source.IsAuth(err):
		return false, true
	default:
		logger.WithError(err).Warnf("Traffic fetch for %s failed, skipping", repo)
		return true, false
	}
}

// selectTrafficRepos applies the sampling policy: non-archived repositories
// pushed to within the active window, ranked by stars, capped at topN.
func selectTrafficRepos(repos []*github.Repository, now time.Time, topN int) []*github.Repository {
	cutoff := now.Add(-TrafficActiveWindow)

	var active []*github.Repository
	for _, repo := range repos {
		if repo.GetArchived() {
			continue
		}
		pushed := repo.GetPushedAt()
		if pushed.IsZero() || pushed.Time.Before(cutoff) {
			continue
		}
		active = append(active, repo)
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].GetStargazersCount() > active[j].GetStargazersCount()
	})

	if topN > 0 && len(active) > topN {
		active = active[:topN]
	}
	return active
}

// mergeTrafficDays joins the view and clone breakdowns on their day
// timestamp. Days present in only one breakdown get zeros for the other.
func mergeTrafficDays(repo string, views *github.TrafficViews, clones *github.TrafficClones) []*models.TrafficStat {
	byDay := make(map[time.Time]*models.TrafficStat)

	row := func(ts time.Time) *models.TrafficStat {
		if s, ok := byDay[ts]; ok {
			return s
		}
		s := &models.TrafficStat{PipelineName: repo, Timestamp: ts}
		byDay[ts] = s
		return s
	}

	if views != nil {
		for _, v := range views.Views {
			if v.Timestamp == nil {
				continue
			}
			s := row(v.Timestamp.Time.UTC())
			s.Views = v.GetCount()
			s.ViewsUniques = v.GetUniques()
		}
	}
	if clones != nil {
		for _, c := range clones.Clones {
			if c.Timestamp == nil {
				continue
			}
			s := row(c.Timestamp.Time.UTC())
			s.Clones = c.GetCount()
			s.ClonesUniques = c.GetUniques()
		}
	}

	rows := make([]*models.TrafficStat, 0, len(byDay))
	for _, s := range byDay {
		rows = append(rows, s)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return rows
}

// filterTrafficRows drops days already stored for the repository and the
// current, still incomplete day. Counts for the running day would otherwise
// be frozen at a partial value by the first-write-wins append.
func filterTrafficRows(rows []*models.TrafficStat, wm *Watermark, now time.Time) []*models.TrafficStat {
	today := dayStart(now)

	var kept []*models.TrafficStat
	for _, s := range rows {
		if err := s.Validate(); err != nil {
			logger.WithError(err).Warn("Skipping malformed traffic record")
			continue
		}
		if !s.Timestamp.Before(today) {
			continue
		}
		if wm != nil {
			if mark, ok := wm.TrafficByRepo[s.PipelineName]; ok && !s.Timestamp.After(mark) {
				continue
			}
		}
		kept = append(kept, s)
	}
	return kept
}
