// Package report assembles the per-pipeline community statistics snapshot
// from the warehouse and renders it as JSON or a spreadsheet.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/communitystats/statspipe/pkg/logger"
)

// ContributorMetrics is the contributor slice of one pipeline's report entry.
type ContributorMetrics struct {
	NumberOfContributors int `json:"number_of_contributors"`
}

// PipelineReport is the full report entry of one pipeline.
type PipelineReport struct {
	PipelineStats    *PipelineStats      `json:"pipeline_stats"`
	IssueStats       *IssueMetrics       `json:"issue_stats"`
	ContributorStats *ContributorMetrics `json:"contributor_stats"`
	Status           string              `json:"status"`
	TrustScore       float64             `json:"trust_score"`
	ScoreComponents  ScoreComponents     `json:"score_components"`
}

type reportSource interface {
	GetPipelineStats() ([]*PipelineStats, error)
	GetIssueMetrics() (map[string]*IssueMetrics, error)
	GetContributorCounts() (map[string]int, error)
}

type Service struct {
	repo reportSource
}

func NewService(repo reportSource) *Service {
	return &Service{repo: repo}
}

// Build assembles the report for every pipeline-category repository, sorted
// by name. Pipelines without issue or contributor rows get nil sections
// rather than zeros, matching how the dashboard treats missing data.
func (s *Service) Build(now time.Time) (map[string]*PipelineReport, error) {
	pipelines, err := s.repo.GetPipelineStats()
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline stats: %w", err)
	}

	issueMetrics, err := s.repo.GetIssueMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to load issue metrics: %w", err)
	}

	contributors, err := s.repo.GetContributorCounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load contributor counts: %w", err)
	}

	reports := make(map[string]*PipelineReport, len(pipelines))
	for _, p := range pipelines {
		entry := &PipelineReport{
			PipelineStats: p,
			IssueStats:    issueMetrics[p.Name],
			Status:        Status(p, now),
		}
		if count, ok := contributors[p.Name]; ok {
			entry.ContributorStats = &ContributorMetrics{NumberOfContributors: count}
		}
		entry.TrustScore, entry.ScoreComponents = TrustScore(p, entry.IssueStats, now)
		reports[p.Name] = entry
	}

	logger.Infof("Report built for %d pipelines", len(reports))
	return reports, nil
}

// WriteJSON writes the report to path, creating parent directories.
func WriteJSON(reports map[string]*PipelineReport, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteXLSX renders the report as a single-sheet spreadsheet, one row per
// pipeline.
func WriteXLSX(reports map[string]*PipelineReport, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Pipelines"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{
		"Name", "Status", "Trust Score", "Stars", "Forks", "Open Issues",
		"Contributors", "Issues", "Closed Issues", "PRs", "Closed PRs", "Last Release",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	for rowIdx, name := range names {
		r := reports[name]
		values := []interface{}{
			name,
			r.Status,
			r.TrustScore,
			r.PipelineStats.StargazersCount,
			r.PipelineStats.ForksCount,
			r.PipelineStats.OpenIssuesCount,
			intOrEmpty(contributorCount(r)),
			intOrEmpty(issueField(r, func(m *IssueMetrics) *int { return m.IssueCount })),
			intOrEmpty(issueField(r, func(m *IssueMetrics) *int { return m.ClosedIssueCount })),
			intOrEmpty(issueField(r, func(m *IssueMetrics) *int { return m.PRCount })),
			intOrEmpty(issueField(r, func(m *IssueMetrics) *int { return m.ClosedPRCount })),
			releaseDate(r),
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func contributorCount(r *PipelineReport) *int {
	if r.ContributorStats == nil {
		return nil
	}
	return &r.ContributorStats.NumberOfContributors
}

func issueField(r *PipelineReport, pick func(*IssueMetrics) *int) *int {
	if r.IssueStats == nil {
		return nil
	}
	return pick(r.IssueStats)
}

func intOrEmpty(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func releaseDate(r *PipelineReport) interface{} {
	if r.PipelineStats.LastReleaseDate == nil {
		return ""
	}
	return r.PipelineStats.LastReleaseDate.Format("2006-01-02")
}
