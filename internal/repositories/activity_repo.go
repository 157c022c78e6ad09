package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/models"
)

// ActivityRepository handles the immutable per-view activity ledger that all
// fraud signals read as their raw history.
type ActivityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// CreateTx appends an activity record within an existing transaction, so the
// record commits atomically with the token flip and the reward credit.
func (r *ActivityRepository) CreateTx(ctx context.Context, tx pgx.Tx, rec *models.ActivityRecord) error {
	query := `
		INSERT INTO ad_activities (id, user_id, activity_type, watch_duration, points_awarded, device_fingerprint, ip_address, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ActivityType,
		rec.WatchDuration,
		rec.PointsAwarded,
		rec.DeviceFingerprint,
		rec.IPAddress,
		rec.OccurredAt,
	)

	return database.MapPostgresError(err)
}

// CountSince returns the number of activity records for a user since the
// given time.
func (r *ActivityRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM ad_activities
		WHERE user_id = $1 AND occurred_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ListSince returns activity records for a user since the given time, oldest
// first, capped at limit.
func (r *ActivityRepository) ListSince(ctx context.Context, userID string, since time.Time, limit int) ([]*models.ActivityRecord, error) {
	query := `
		SELECT id, user_id, activity_type, watch_duration, points_awarded, device_fingerprint, ip_address, occurred_at
		FROM ad_activities
		WHERE user_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at ASC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, since, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ListRecent returns the most recent activity records for a user, newest
// first, capped at limit.
func (r *ActivityRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*models.ActivityRecord, error) {
	query := `
		SELECT id, user_id, activity_type, watch_duration, points_awarded, device_fingerprint, ip_address, occurred_at
		FROM ad_activities
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// DistinctDevices returns the distinct device fingerprints seen for a user
// since the given time.
func (r *ActivityRepository) DistinctDevices(ctx context.Context, userID string, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT device_fingerprint FROM ad_activities
		WHERE user_id = $1 AND occurred_at >= $2 AND device_fingerprint <> ''
	`

	return r.queryStrings(ctx, query, userID, since)
}

// DistinctIPs returns the distinct origin IPs seen for a user since the given
// time.
func (r *ActivityRepository) DistinctIPs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT ip_address FROM ad_activities
		WHERE user_id = $1 AND occurred_at >= $2 AND ip_address <> ''
	`

	return r.queryStrings(ctx, query, userID, since)
}

// CountAccountsForIP returns how many distinct accounts have produced
// activity from an IP.
func (r *ActivityRepository) CountAccountsForIP(ctx context.Context, ipAddress string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT user_id) FROM ad_activities
		WHERE ip_address = $1
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress).Scan(&count)
	return count, database.MapPostgresError(err)
}

// GetRewardStats aggregates a user's credited views for today and all time.
func (r *ActivityRepository) GetRewardStats(ctx context.Context, userID string, dayStart time.Time) (*models.RewardStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE occurred_at >= $2),
			COALESCE(SUM(points_awarded) FILTER (WHERE occurred_at >= $2), 0),
			COUNT(*),
			COALESCE(SUM(points_awarded), 0)
		FROM ad_activities
		WHERE user_id = $1
	`

	var stats models.RewardStats
	err := r.db.Pool.QueryRow(ctx, query, userID, dayStart).Scan(
		&stats.TodayViews,
		&stats.TodayPoints,
		&stats.TotalViews,
		&stats.TotalPoints,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &stats, nil
}

func (r *ActivityRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func scanActivities(rows pgx.Rows) ([]*models.ActivityRecord, error) {
	var records []*models.ActivityRecord
	for rows.Next() {
		var rec models.ActivityRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.ActivityType,
			&rec.WatchDuration,
			&rec.PointsAwarded,
			&rec.DeviceFingerprint,
			&rec.IPAddress,
			&rec.OccurredAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}
