package models

import (
	"errors"
	"time"
)

// TrafficStat represents one day of views and clones for a repository.
// Rows are append-only; GitHub serves a rolling 14-day window, so re-runs
// overlap and the (pipeline_name, timestamp) key deduplicates them.
type TrafficStat struct {
	PipelineName  string    `json:"pipeline_name"`
	Timestamp     time.Time `json:"timestamp"`
	Views         int       `json:"views"`
	ViewsUniques  int       `json:"views_uniques"`
	Clones        int       `json:"clones"`
	ClonesUniques int       `json:"clones_uniques"`
}

// Validate validates the TrafficStat identity fields
func (t *TrafficStat) Validate() error {
	if t.PipelineName == "" {
		return errors.New("pipeline name is required")
	}
	if t.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}
