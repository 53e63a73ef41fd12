package models

import (
	"time"

	"github.com/google/uuid"
)

// RunOutcome is the terminal state of a pipeline run.
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "success"
	RunOutcomePartial RunOutcome = "partial"
	RunOutcomeFailed  RunOutcome = "failed"
)

// IngestionRun is the bookkeeping row written once per pipeline invocation.
type IngestionRun struct {
	ID               string     `json:"run_id"`
	Pipeline         string     `json:"pipeline"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	Outcome          RunOutcome `json:"outcome"`
	RowsWritten      int        `json:"rows_written"`
	AbortedResources []string   `json:"aborted_resources"`
}

// NewIngestionRun creates a new IngestionRun with a generated UUID
func NewIngestionRun(pipeline string) *IngestionRun {
	return &IngestionRun{
		ID:        uuid.New().String(),
		Pipeline:  pipeline,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the terminal state of the run.
func (r *IngestionRun) Finish(outcome RunOutcome) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Outcome = outcome
}
