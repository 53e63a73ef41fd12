package repositories

import (
	"database/sql"
	"time"

	"github.com/communitystats/statspipe/internal/models"
)

type TrafficStatRepository struct {
	db *sql.DB
}

func NewTrafficStatRepository(db *sql.DB) *TrafficStatRepository {
	return &TrafficStatRepository{db: db}
}

// Append inserts traffic rows, silently skipping rows whose
// (pipeline_name, timestamp) key is already present. Returns the number of
// rows actually inserted.
func (r *TrafficStatRepository) Append(stats []*models.TrafficStat) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO github.traffic_stats (
			pipeline_name, timestamp, views, views_uniques, clones, clones_uniques
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (pipeline_name, timestamp) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range stats {
		res, err := stmt.Exec(s.PipelineName, s.Timestamp, s.Views, s.ViewsUniques, s.Clones, s.ClonesUniques)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// MaxTimestamp returns the newest traffic timestamp in the warehouse, or nil
// when the table is empty. Used as the run watermark.
func (r *TrafficStatRepository) MaxTimestamp() (*time.Time, error) {
	var ts sql.NullTime
	err := r.db.QueryRow(`SELECT MAX(timestamp) FROM github.traffic_stats`).Scan(&ts)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

// MaxTimestampByRepo returns the newest stored traffic timestamp per
// repository. Days at or before this mark are already in the warehouse and
// can be skipped at extraction time.
func (r *TrafficStatRepository) MaxTimestampByRepo() (map[string]time.Time, error) {
	rows, err := r.db.Query(`
		SELECT pipeline_name, MAX(timestamp)
		FROM github.traffic_stats
		GROUP BY pipeline_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var ts time.Time
		if err := rows.Scan(&name, &ts); err != nil {
			return nil, err
		}
		marks[name] = ts
	}
	return marks, rows.Err()
}

// CountForRepository returns the number of traffic rows stored for a repository.
func (r *TrafficStatRepository) CountForRepository(pipelineName string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM github.traffic_stats WHERE pipeline_name = ?`, pipelineName).Scan(&count)
	return count, err
}
