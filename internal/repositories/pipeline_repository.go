package repositories

import (
	"database/sql"
	"strings"

	"github.com/communitystats/statspipe/internal/models"
)

type PipelineRepository struct {
	db *sql.DB
}

func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// ReplaceAll discards the previous snapshot and stores the current one in a
// single transaction, so repositories deleted upstream disappear here too.
func (r *PipelineRepository) ReplaceAll(pipelines []*models.Pipeline) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM github.nfcore_pipelines`); err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO github.nfcore_pipelines (
			name, description, gh_created_at, gh_updated_at, gh_pushed_at,
			stargazers_count, watchers_count, forks_count, open_issues_count,
			topics, default_branch, archived, last_release_date, number_of_releases, category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, p := range pipelines {
		_, err := stmt.Exec(
			p.Name, p.Description, p.GhCreatedAt, p.GhUpdatedAt, p.GhPushedAt,
			p.StargazersCount, p.WatchersCount, p.ForksCount, p.OpenIssuesCount,
			strings.Join(p.Topics, ","), p.DefaultBranch, p.Archived,
			p.LastReleaseDate, p.NumberOfReleases, p.Category,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(pipelines), nil
}

// GetAll retrieves the current snapshot ordered by name.
func (r *PipelineRepository) GetAll() ([]*models.Pipeline, error) {
	rows, err := r.db.Query(`
		SELECT name, description, gh_created_at, gh_updated_at, gh_pushed_at,
			   stargazers_count, watchers_count, forks_count, open_issues_count,
			   topics, default_branch, archived, last_release_date, number_of_releases, category
		FROM github.nfcore_pipelines
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []*models.Pipeline
	for rows.Next() {
		p := &models.Pipeline{}
		var topics string
		err := rows.Scan(
			&p.Name, &p.Description, &p.GhCreatedAt, &p.GhUpdatedAt, &p.GhPushedAt,
			&p.StargazersCount, &p.WatchersCount, &p.ForksCount, &p.OpenIssuesCount,
			&topics, &p.DefaultBranch, &p.Archived, &p.LastReleaseDate, &p.NumberOfReleases, &p.Category,
		)
		if err != nil {
			return nil, err
		}
		if topics != "" {
			p.Topics = strings.Split(topics, ",")
		}
		pipelines = append(pipelines, p)
	}

	return pipelines, rows.Err()
}
