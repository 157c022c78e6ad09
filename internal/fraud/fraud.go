// Package fraud turns raw behavioral telemetry into a bounded risk score.
//
// Six independent collectors each read a trailing window of one user's
// activity and produce a [0,1] sub-score plus zero or more flags. The engine
// aggregates them with fixed weights into a single risk score. Scoring is
// rule-based and deterministic given the same history snapshot: every flag
// names the rule that raised it, so any decision can be explained after the
// fact.
package fraud

import (
	"context"
	"time"

	"github.com/saqrlabs/trustcore/internal/models"
)

// Signal is one collector's output. Score is always within [0,1].
type Signal struct {
	Score float64
	Flags []string
}

// Collector analyzes one behavioral dimension of a user's history.
type Collector interface {
	Name() string
	Collect(ctx context.Context, userID string) (Signal, error)
}

// Config holds the behavioral thresholds shared by the collectors.
type Config struct {
	MaxAdsPerHour        int
	MaxAdsPerDay         int
	MinWatchSeconds      int
	MaxWatchSeconds      int
	NominalAdSeconds     int
	MaxDevicesPerAccount int
	MaxAccountsPerIP     int
	PointsPerView        int
	DailyClaimLimit      int
}

// ActivityHistory is the read-only activity ledger view the collectors
// consume.
type ActivityHistory interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListSince(ctx context.Context, userID string, since time.Time, limit int) ([]*models.ActivityRecord, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*models.ActivityRecord, error)
	DistinctDevices(ctx context.Context, userID string, since time.Time) ([]string, error)
	DistinctIPs(ctx context.Context, userID string, since time.Time) ([]string, error)
	CountAccountsForIP(ctx context.Context, ipAddress string) (int, error)
}

// AccountReader resolves account records for collectors that need creation
// time or email.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// BalanceReader exposes a user's reward balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID string) (points, totalEarned int64, err error)
}

// SessionStarts exposes the distinct hours-of-day at which a user started
// sessions.
type SessionStarts interface {
	SessionStartHours(ctx context.Context, email string, since time.Time) ([]int, error)
}

// clamp bounds a score to [0,1].
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
