package models

import "time"

// OrgMemberCount is a point-in-time count of organization members.
type OrgMemberCount struct {
	Timestamp  time.Time `json:"timestamp"`
	NumMembers int       `json:"num_members"`
}
