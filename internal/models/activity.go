package models

import "time"

// Activity types recorded per successful redemption.
const (
	ActivityRewardedView = "rewarded_view"
)

// ActivityRecord is one completed, credited ad view. Records are immutable
// after insertion and are the raw history every fraud signal reads.
type ActivityRecord struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	ActivityType      string    `db:"activity_type"`
	WatchDuration     int       `db:"watch_duration"`
	PointsAwarded     int       `db:"points_awarded"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	IPAddress         string    `db:"ip_address"`
	OccurredAt        time.Time `db:"occurred_at"`
}

// RewardStats aggregates a user's credited views for the stats endpoint.
type RewardStats struct {
	TodayViews     int   `json:"today_views"`
	TodayPoints    int64 `json:"today_points"`
	TodayRemaining int   `json:"today_remaining"`
	DailyLimit     int   `json:"daily_limit"`
	TotalViews     int   `json:"total_views"`
	TotalPoints    int64 `json:"total_points"`
}
