package models

import (
	"errors"
	"time"
)

// ContributorWeekStat represents one contributor's activity in one week of a
// repository. Merge disposition: re-fetching a week overwrites prior values.
type ContributorWeekStat struct {
	PipelineName string    `json:"pipeline_name"`
	Author       string    `json:"author"`
	AvatarURL    string    `json:"avatar_url"`
	WeekDate     time.Time `json:"week_date"`
	Commits      int       `json:"week_commits"`
	Additions    int       `json:"week_additions"`
	Deletions    int       `json:"week_deletions"`
}

// Validate validates the ContributorWeekStat identity fields
func (c *ContributorWeekStat) Validate() error {
	if c.PipelineName == "" {
		return errors.New("pipeline name is required")
	}
	if c.Author == "" {
		return errors.New("author is required")
	}
	if c.WeekDate.IsZero() {
		return errors.New("week date is required")
	}
	return nil
}
