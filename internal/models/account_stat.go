package models

import "time"

// AccountStat is a point-in-time snapshot of social account metrics.
type AccountStat struct {
	Timestamp      time.Time `json:"timestamp"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	TweetCount     int       `json:"tweet_count"`
	ListedCount    int       `json:"listed_count"`
}
