package repositories

import (
	"database/sql"

	"github.com/communitystats/statspipe/internal/models"
)

type IssueStatRepository struct {
	db *sql.DB
}

func NewIssueStatRepository(db *sql.DB) *IssueStatRepository {
	return &IssueStatRepository{db: db}
}

// PriorIssueState is the comment-derived state of an already ingested issue,
// read once at run start so the extractor can skip settled issues.
type PriorIssueState struct {
	NumComments          int
	FirstResponseSeconds *float64
	FirstResponder       *string
}

// Upsert merges issue rows by (pipeline_name, issue_number).
func (r *IssueStatRepository) Upsert(stats []*models.IssueStat) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO github.issue_stats (
			pipeline_name, issue_number, issue_type, state, created_by, created_at,
			updated_at, closed_at, closed_wait_seconds, first_response_seconds,
			first_responder, num_comments, html_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pipeline_name, issue_number) DO UPDATE SET
			issue_type = excluded.issue_type,
			state = excluded.state,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			closed_at = excluded.closed_at,
			closed_wait_seconds = excluded.closed_wait_seconds,
			first_response_seconds = excluded.first_response_seconds,
			first_responder = excluded.first_responder,
			num_comments = excluded.num_comments,
			html_url = excluded.html_url
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, s := range stats {
		_, err := stmt.Exec(
			s.PipelineName, s.IssueNumber, string(s.IssueType), s.State, s.CreatedBy, s.CreatedAt,
			s.UpdatedAt, s.ClosedAt, s.ClosedWaitSeconds, s.FirstResponseSeconds,
			s.FirstResponder, s.NumComments, s.HTMLURL,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stats), nil
}

// GetPriorState returns the stored comment state for every issue, keyed by
// pipeline name and issue number.
func (r *IssueStatRepository) GetPriorState() (map[string]map[int]PriorIssueState, error) {
	rows, err := r.db.Query(`
		SELECT pipeline_name, issue_number, num_comments, first_response_seconds, first_responder
		FROM github.issue_stats
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prior := make(map[string]map[int]PriorIssueState)
	for rows.Next() {
		var (
			name          string
			number        int
			numComments   int
			firstResponse sql.NullFloat64
			firstUser     sql.NullString
		)
		if err := rows.Scan(&name, &number, &numComments, &firstResponse, &firstUser); err != nil {
			return nil, err
		}

		state := PriorIssueState{NumComments: numComments}
		if firstResponse.Valid {
			state.FirstResponseSeconds = &firstResponse.Float64
		}
		if firstUser.Valid {
			state.FirstResponder = &firstUser.String
		}

		if prior[name] == nil {
			prior[name] = make(map[int]PriorIssueState)
		}
		prior[name][number] = state
	}

	return prior, rows.Err()
}

// GetByKey retrieves a single issue row, or sql.ErrNoRows.
func (r *IssueStatRepository) GetByKey(pipelineName string, issueNumber int) (*models.IssueStat, error) {
	query := `
		SELECT pipeline_name, issue_number, issue_type, state, created_by, created_at,
			   updated_at, closed_at, closed_wait_seconds, first_response_seconds,
			   first_responder, num_comments, html_url
		FROM github.issue_stats
		WHERE pipeline_name = ? AND issue_number = ?
	`

	stat := &models.IssueStat{}
	var issueType string
	err := r.db.QueryRow(query, pipelineName, issueNumber).Scan(
		&stat.PipelineName, &stat.IssueNumber, &issueType, &stat.State, &stat.CreatedBy, &stat.CreatedAt,
		&stat.UpdatedAt, &stat.ClosedAt, &stat.ClosedWaitSeconds, &stat.FirstResponseSeconds,
		&stat.FirstResponder, &stat.NumComments, &stat.HTMLURL,
	)
	if err != nil {
		return nil, err
	}
	stat.IssueType = models.IssueType(issueType)
	return stat, nil
}
