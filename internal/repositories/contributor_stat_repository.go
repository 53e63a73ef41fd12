package repositories

import (
	"database/sql"

	"github.com/communitystats/statspipe/internal/models"
)

type ContributorStatRepository struct {
	db *sql.DB
}

func NewContributorStatRepository(db *sql.DB) *ContributorStatRepository {
	return &ContributorStatRepository{db: db}
}

// Upsert merges contributor week rows by (pipeline_name, author, week_date).
// Existing rows are overwritten entirely, new keys are inserted.
func (r *ContributorStatRepository) Upsert(stats []*models.ContributorWeekStat) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO github.contributor_stats (
			pipeline_name, author, avatar_url, week_date, week_commits, week_additions, week_deletions
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pipeline_name, author, week_date) DO UPDATE SET
			avatar_url = excluded.avatar_url,
			week_commits = excluded.week_commits,
			week_additions = excluded.week_additions,
			week_deletions = excluded.week_deletions
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.Exec(s.PipelineName, s.Author, s.AvatarURL, s.WeekDate, s.Commits, s.Additions, s.Deletions); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stats), nil
}

// GetByKey retrieves a single contributor week row, or sql.ErrNoRows.
func (r *ContributorStatRepository) GetByKey(pipelineName, author string, weekDate string) (*models.ContributorWeekStat, error) {
	query := `
		SELECT pipeline_name, author, avatar_url, week_date, week_commits, week_additions, week_deletions
		FROM github.contributor_stats
		WHERE pipeline_name = ? AND author = ? AND week_date = ?
	`

	stat := &models.ContributorWeekStat{}
	err := r.db.QueryRow(query, pipelineName, author, weekDate).Scan(
		&stat.PipelineName, &stat.Author, &stat.AvatarURL, &stat.WeekDate,
		&stat.Commits, &stat.Additions, &stat.Deletions,
	)
	if err != nil {
		return nil, err
	}
	return stat, nil
}
