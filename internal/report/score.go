package report

import (
	"math"
	"time"
)

// Pipeline status thresholds, in days since the last release.
const (
	statusActiveDays      = 180
	statusMaintenanceDays = 365
)

const (
	StatusArchived      = "Archived"
	StatusInDevelopment = "In Development"
	StatusActive        = "Active"
	StatusMaintenance   = "Maintenance"
	StatusLegacy        = "Legacy"
)

// Status classifies a pipeline by its release cadence.
func Status(p *PipelineStats, now time.Time) string {
	if p.Archived {
		return StatusArchived
	}
	if p.NumberOfReleases == nil || *p.NumberOfReleases == 0 || p.LastReleaseDate == nil {
		return StatusInDevelopment
	}

	daysSince := now.Sub(*p.LastReleaseDate).Hours() / 24
	switch {
	case daysSince < statusActiveDays:
		return StatusActive
	case daysSince < statusMaintenanceDays:
		return StatusMaintenance
	default:
		return StatusLegacy
	}
}

// Trust score weights and decay half-lives. Scores are 0-100; the weighted
// sum blends maintenance activity, issue resolution, PR management and
// community engagement.
const (
	weightMaintenance     = 0.30
	weightIssueResolution = 0.25
	weightPRManagement    = 0.20
	weightCommunity       = 0.25

	maintenanceHalfLifeDays = 240
	issueSpeedHalfLifeDays  = 45
	prSpeedHalfLifeDays     = 14

	starScaleCeiling = 500
	forkScaleCeiling = 200
)

// ScoreComponents breaks the trust score into its weighted parts.
type ScoreComponents struct {
	Maintenance     float64 `json:"maintenance"`
	IssueResolution float64 `json:"issue_resolution"`
	PRManagement    float64 `json:"pr_management"`
	Community       float64 `json:"community"`
}

// TrustScore computes the 0-100 pipeline confidence score.
func TrustScore(p *PipelineStats, issues *IssueMetrics, now time.Time) (float64, ScoreComponents) {
	issueTotal, issueClosed, issueMedian, haveIssues := issueCounts(issues)
	prTotal, prClosed, prMedian, havePRs := prCounts(issues)

	c := ScoreComponents{
		Maintenance:     maintenanceScore(p.LastReleaseDate, now),
		IssueResolution: resolutionScore(issueTotal, issueClosed, issueMedian, haveIssues, issueSpeedHalfLifeDays),
		PRManagement:    resolutionScore(prTotal, prClosed, prMedian, havePRs, prSpeedHalfLifeDays),
		Community:       communityScore(p.StargazersCount, p.ForksCount),
	}

	score := c.Maintenance*weightMaintenance +
		c.IssueResolution*weightIssueResolution +
		c.PRManagement*weightPRManagement +
		c.Community*weightCommunity

	return math.Round(score*10) / 10, c
}

func maintenanceScore(lastRelease *time.Time, now time.Time) float64 {
	if lastRelease == nil {
		return 0
	}
	days := now.Sub(*lastRelease).Hours() / 24
	return 100 * math.Exp(-days/maintenanceHalfLifeDays)
}

func issueCounts(m *IssueMetrics) (total, closed int, medianSeconds *float64, haveAny bool) {
	if m == nil || m.IssueCount == nil {
		return 0, 0, nil, false
	}
	total = *m.IssueCount
	if m.ClosedIssueCount != nil {
		closed = *m.ClosedIssueCount
	}
	return total, closed, m.MedianSecondsToIssueClosed, true
}

func prCounts(m *IssueMetrics) (total, closed int, medianSeconds *float64, haveAny bool) {
	if m == nil || m.PRCount == nil {
		return 0, 0, nil, false
	}
	total = *m.PRCount
	if m.ClosedPRCount != nil {
		closed = *m.ClosedPRCount
	}
	return total, closed, m.MedianSecondsToPRClosed, true
}

// resolutionScore blends closure rate (70%) with closure speed (30%). A
// pipeline with no items at all gets a good default rather than a penalty,
// and an unknown median gets a neutral speed score.
func resolutionScore(total, closed int, medianSeconds *float64, haveAny bool, halfLifeDays float64) float64 {
	if !haveAny || total == 0 {
		return 70
	}

	closureScore := float64(closed) / float64(total) * 100

	speedScore := 50.0
	if medianSeconds != nil {
		daysToClose := *medianSeconds / 86400
		speedScore = 100 * math.Exp(-daysToClose/halfLifeDays)
	}

	return 0.7*closureScore + 0.3*speedScore
}

func communityScore(stars, forks int) float64 {
	starScore := math.Min(100, math.Log1p(float64(stars))/math.Log1p(starScaleCeiling)*100)
	forkScore := math.Min(100, math.Log1p(float64(forks))/math.Log1p(forkScaleCeiling)*100)
	return 0.6*starScore + 0.4*forkScore
}
