package repositories

import (
	"database/sql"

	"github.com/communitystats/statspipe/internal/models"
)

type AccountStatRepository struct {
	db *sql.DB
}

func NewAccountStatRepository(db *sql.DB) *AccountStatRepository {
	return &AccountStatRepository{db: db}
}

// Append inserts account metric samples, skipping duplicate timestamps.
func (r *AccountStatRepository) Append(stats []*models.AccountStat) (int, error) {
	inserted := 0
	for _, s := range stats {
		res, err := r.db.Exec(`
			INSERT INTO twitter.account_stats (timestamp, followers_count, following_count, tweet_count, listed_count)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (timestamp) DO NOTHING
		`, s.Timestamp, s.FollowersCount, s.FollowingCount, s.TweetCount, s.ListedCount)
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
func (r *AccountStatRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM twitter.account_stats`).Scan(&count)
	return count, err
}
