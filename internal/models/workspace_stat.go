package models

import "time"

// WorkspaceStat is a point-in-time snapshot of chat workspace activity,
// using the workspace's billing definition of "active".
type WorkspaceStat struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalUsers    int       `json:"total_users"`
	ActiveUsers   int       `json:"active_users"`
	InactiveUsers int       `json:"inactive_users"`
}
