package repositories

import (
	"database/sql"

	"github.com/communitystats/statspipe/internal/models"
)

type OrgMemberRepository struct {
	db *sql.DB
}

func NewOrgMemberRepository(db *sql.DB) *OrgMemberRepository {
	return &OrgMemberRepository{db: db}
}

// Append inserts a member count sample, skipping duplicate timestamps.
func (r *OrgMemberRepository) Append(counts []*models.OrgMemberCount) (int, error) {
	inserted := 0
	for _, c := range counts {
		res, err := r.db.Exec(`
			INSERT INTO github.org_members (timestamp, num_members)
			VALUES (?, ?)
			ON CONFLICT (timestamp) DO NOTHING
		`, c.Timestamp, c.NumMembers)
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
func (r *OrgMemberRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM github.org_members`).Scan(&count)
	return count, err
}
