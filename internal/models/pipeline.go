package models

import (
	"errors"
	"time"
)

// Pipeline categories. Repositories listed in the community pipelines index
// are "pipeline", everything else in the organization is "core".
const (
	CategoryPipeline = "pipeline"
	CategoryCore     = "core"
)

// Pipeline is the full metadata snapshot of one repository. The table is
// replaced wholesale on every run, so deleted repositories disappear.
type Pipeline struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	GhCreatedAt      *time.Time `json:"gh_created_at"`
	GhUpdatedAt      *time.Time `json:"gh_updated_at"`
	GhPushedAt       *time.Time `json:"gh_pushed_at"`
	StargazersCount  int        `json:"stargazers_count"`
	WatchersCount    int        `json:"watchers_count"`
	ForksCount       int        `json:"forks_count"`
	OpenIssuesCount  int        `json:"open_issues_count"`
	Topics           []string   `json:"topics"`
	DefaultBranch    string     `json:"default_branch"`
	Archived         bool       `json:"archived"`
	LastReleaseDate  *time.Time `json:"last_release_date"`
	NumberOfReleases *int       `json:"number_of_releases"`
	Category         string     `json:"category"`
}

// Validate validates the Pipeline identity fields
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Category != CategoryPipeline && p.Category != CategoryCore {
		return errors.New("category must be pipeline or core")
	}
	return nil
}
