package report

import (
	"database/sql"
	"time"
)

// PipelineStats is the metadata slice of one pipeline used by the report.
type PipelineStats struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	StargazersCount  int        `json:"stargazers_count"`
	WatchersCount    int        `json:"watchers_count"`
	ForksCount       int        `json:"forks_count"`
	OpenIssuesCount  int        `json:"open_issues_count"`
	Archived         bool       `json:"archived"`
	LastReleaseDate  *time.Time `json:"last_release_date"`
	NumberOfReleases *int       `json:"number_of_releases"`
	Category         string     `json:"category"`
}

// IssueMetrics aggregates issue and PR lifecycle numbers per pipeline.
// Pointers stay nil where the pipeline has no matching rows.
type IssueMetrics struct {
	IssueCount                 *int     `json:"issue_count"`
	ClosedIssueCount           *int     `json:"closed_issue_count"`
	MedianSecondsToIssueClosed *float64 `json:"median_seconds_to_issue_closed"`
	PRCount                    *int     `json:"pr_count"`
	ClosedPRCount              *int     `json:"closed_pr_count"`
	MedianSecondsToPRClosed    *float64 `json:"median_seconds_to_pr_closed"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetPipelineStats returns the metadata of every pipeline-category repository.
func (r *Repository) GetPipelineStats() ([]*PipelineStats, error) {
	rows, err := r.db.Query(`
		SELECT
			name, description, stargazers_count, watchers_count, forks_count,
			open_issues_count, archived, last_release_date, number_of_releases, category
		FROM github.nfcore_pipelines
		WHERE category = 'pipeline'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*PipelineStats
	for rows.Next() {
		p := &PipelineStats{}
		var description sql.NullString
		var lastRelease sql.NullTime
		var numReleases sql.NullInt64
		err := rows.Scan(
			&p.Name, &description, &p.StargazersCount, &p.WatchersCount, &p.ForksCount,
			&p.OpenIssuesCount, &p.Archived, &lastRelease, &numReleases, &p.Category,
		)
		if err != nil {
			return nil, err
		}
		p.Description = description.String
		if lastRelease.Valid {
			t := lastRelease.Time
			p.LastReleaseDate = &t
		}
		if numReleases.Valid {
			n := int(numReleases.Int64)
			p.NumberOfReleases = &n
		}
		stats = append(stats, p)
	}
	return stats, rows.Err()
}

// GetIssueMetrics aggregates issue and PR counts plus median close times per
// pipeline, full-joined so a pipeline with only PRs still appears.
func (r *Repository) GetIssueMetrics() (map[string]*IssueMetrics, error) {
	rows, err := r.db.Query(`
		SELECT
			COALESCE(i.pipeline_name, c.pipeline_name, p.pipeline_name, pc.pipeline_name) AS pipeline_name,
			i.issue_count,
			c.closed_issue_count,
			c.median_seconds_to_issue_closed,
			p.pr_count,
			pc.closed_pr_count,
			pc.median_seconds_to_pr_closed
		FROM (
			SELECT pipeline_name, COUNT(issue_number) AS issue_count
			FROM github.issue_stats
			WHERE issue_type = 'issue'
			GROUP BY pipeline_name
		) AS i
		FULL JOIN (
			SELECT
				pipeline_name,
				COUNT(issue_number) AS closed_issue_count,
				MEDIAN(closed_wait_seconds) AS median_seconds_to_issue_closed
			FROM github.issue_stats
			WHERE issue_type = 'issue' AND state = 'closed'
			GROUP BY pipeline_name
		) AS c ON i.pipeline_name = c.pipeline_name
		FULL JOIN (
			SELECT pipeline_name, COUNT(issue_number) AS pr_count
			FROM github.issue_stats
			WHERE issue_type = 'pr'
			GROUP BY pipeline_name
		) AS p ON COALESCE(i.pipeline_name, c.pipeline_name) = p.pipeline_name
		FULL JOIN (
			SELECT
				pipeline_name,
				COUNT(issue_number) AS closed_pr_count,
				MEDIAN(closed_wait_seconds) AS median_seconds_to_pr_closed
			FROM github.issue_stats
			WHERE issue_type = 'pr' AND state = 'closed'
			GROUP BY pipeline_name
		) AS pc ON COALESCE(i.pipeline_name, c.pipeline_name, p.pipeline_name) = pc.pipeline_name
		ORDER BY pipeline_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := make(map[string]*IssueMetrics)
	for rows.Next() {
		var name string
		m := &IssueMetrics{}
		var issueCount, closedIssueCount, prCount, closedPRCount sql.NullInt64
		var medianIssue, medianPR sql.NullFloat64
		err := rows.Scan(&name, &issueCount, &closedIssueCount, &medianIssue, &prCount, &closedPRCount, &medianPR)
		if err != nil {
			return nil, err
		}
		if issueCount.Valid {
			n := int(issueCount.Int64)
			m.IssueCount = &n
		}
		if closedIssueCount.Valid {
			n := int(closedIssueCount.Int64)
			m.ClosedIssueCount = &n
		}
		if medianIssue.Valid {
			v := medianIssue.Float64
			m.MedianSecondsToIssueClosed = &v
		}
		if prCount.Valid {
			n := int(prCount.Int64)
			m.PRCount = &n
		}
		if closedPRCount.Valid {
			n := int(closedPRCount.Int64)
			m.ClosedPRCount = &n
		}
		if medianPR.Valid {
			v := medianPR.Float64
			m.MedianSecondsToPRClosed = &v
		}
		metrics[name] = m
	}
	return metrics, rows.Err()
}

// GetContributorCounts returns the distinct contributor count per pipeline.
func (r *Repository) GetContributorCounts() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT pipeline_name, COUNT(DISTINCT author) AS number_of_contributors
		FROM github.contributor_stats
		GROUP BY pipeline_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		counts[name] = count
	}
	return counts, rows.Err()
}
