package repositories

import (
	"database/sql"

	"github.com/communitystats/statspipe/internal/models"
)

type WorkspaceStatRepository struct {
	db *sql.DB
}

func NewWorkspaceStatRepository(db *sql.DB) *WorkspaceStatRepository {
	return &WorkspaceStatRepository{db: db}
}

// Append inserts workspace activity samples, skipping duplicate timestamps.
func (r *WorkspaceStatRepository) Append(stats []*models.WorkspaceStat) (int, error) {
	inserted := 0
	for _, s := range stats {
		res, err := r.db.Exec(`
			INSERT INTO slack.workspace_stats (timestamp, total_users, active_users, inactive_users)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (timestamp) DO NOTHING
		`, s.Timestamp, s.TotalUsers, s.ActiveUsers, s.InactiveUsers)
		if err != nil {
			return inserted, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// Count returns the number of samples stored.
func (r *WorkspaceStatRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM slack.workspace_stats`).Scan(&count)
	return count, err
}
