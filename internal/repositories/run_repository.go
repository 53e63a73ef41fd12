package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/communitystats/statspipe/internal/models"
)

// Schemas that carry an ingestion_runs table. The schema name is interpolated
// into SQL, so it must come from this fixed set.
var runSchemas = map[string]bool{
	"github":  true,
	"slack":   true,
	"twitter": true,
}

type RunRepository struct {
	db     *sql.DB
	schema string
}

func NewRunRepository(db *sql.DB, schema string) (*RunRepository, error) {
	if !runSchemas[schema] {
		return nil, fmt.Errorf("unknown pipeline schema %q", schema)
	}
	return &RunRepository{db: db, schema: schema}, nil
}

// Create records the start of a run.
func (r *RunRepository) Create(run *models.IngestionRun) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.ingestion_runs (run_id, pipeline, started_at)
		VALUES (?, ?, ?)
	`, r.schema)

	_, err := r.db.Exec(query, run.ID, run.Pipeline, run.StartedAt)
	return err
}

// Finish records the terminal state of a run.
func (r *RunRepository) Finish(run *models.IngestionRun) error {
	query := fmt.Sprintf(`
		UPDATE %s.ingestion_runs
		SET finished_at = ?, outcome = ?, rows_written = ?, aborted_resources = ?
		WHERE run_id = ?
	`, r.schema)

	_, err := r.db.Exec(query,
		run.FinishedAt, string(run.Outcome), run.RowsWritten,
		strings.Join(run.AbortedResources, ","), run.ID,
	)
	return err
}

// GetByID retrieves a run row by its ID
func (r *RunRepository) GetByID(id string) (*models.IngestionRun, error) {
	query := fmt.Sprintf(`
		SELECT run_id, pipeline, started_at, finished_at, outcome, rows_written, aborted_resources
		FROM %s.ingestion_runs WHERE run_id = ?
	`, r.schema)

	run := &models.IngestionRun{}
	var outcome, aborted sql.NullString
	err := r.db.QueryRow(query, id).Scan(
		&run.ID, &run.Pipeline, &run.StartedAt, &run.FinishedAt,
		&outcome, &run.RowsWritten, &aborted,
	)
	if err != nil {
		return nil, err
	}
	run.Outcome = models.RunOutcome(outcome.String)
	if aborted.Valid && aborted.String != "" {
		run.AbortedResources = strings.Split(aborted.String, ",")
	}
	return run, nil
}
