package models

import (
	"errors"
	"time"
)

// IssueType distinguishes issues from pull requests in the shared table.
type IssueType string

const (
	IssueTypeIssue IssueType = "issue"
	IssueTypePR    IssueType = "pr"
)

// IssueStat represents the lifecycle stats of one issue or pull request.
// Merge disposition on (pipeline_name, issue_number). ClosedAt and
// ClosedWaitSeconds transition from nil to set exactly once.
type IssueStat struct {
	PipelineName         string     `json:"pipeline_name"`
	IssueNumber          int        `json:"issue_number"`
	IssueType            IssueType  `json:"issue_type"`
	State                string     `json:"state"`
	CreatedBy            string     `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
	ClosedAt             *time.Time `json:"closed_at"`
	ClosedWaitSeconds    *float64   `json:"closed_wait_seconds"`
	FirstResponseSeconds *float64   `json:"first_response_seconds"`
	FirstResponder       *string    `json:"first_responder"`
	NumComments          int        `json:"num_comments"`
	HTMLURL              string     `json:"html_url"`
}

// Validate validates the IssueStat identity fields
func (i *IssueStat) Validate() error {
	if i.PipelineName == "" {
		return errors.New("pipeline name is required")
	}
	if i.IssueNumber <= 0 {
		return errors.New("issue number is required")
	}
	if i.CreatedAt.IsZero() {
		return errors.New("created at is required")
	}
	return nil
}
