package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/models"
)

// TrustStateRepository handles the per-account trust standing and the warning
// ledger feeding its thresholds.
type TrustStateRepository struct {
	db *database.DB
}

// NewTrustStateRepository creates a new TrustStateRepository
func NewTrustStateRepository(db *database.DB) *TrustStateRepository {
	return &TrustStateRepository{db: db}
}

// Get returns the trust state for a user. A user with no row yet is
// implicitly active with zero warnings.
func (r *TrustStateRepository) Get(ctx context.Context, userID string) (*models.TrustState, error) {
	query := `
		SELECT user_id, status, warning_count, suspension_until, ban_reason, risk_flags, updated_at
		FROM trust_states
		WHERE user_id = $1
	`

	var ts models.TrustState
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&ts.UserID,
		&ts.Status,
		&ts.WarningCount,
		&ts.SuspensionUntil,
		&ts.BanReason,
		&ts.RiskFlags,
		&ts.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return &models.TrustState{
			UserID: userID,
			Status: models.TrustActive,
		}, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &ts, nil
}

// Upsert writes the full trust state for a user.
func (r *TrustStateRepository) Upsert(ctx context.Context, ts *models.TrustState) error {
	query := `
		INSERT INTO trust_states (user_id, status, warning_count, suspension_until, ban_reason, risk_flags, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status,
		    warning_count = EXCLUDED.warning_count,
		    suspension_until = EXCLUDED.suspension_until,
		    ban_reason = EXCLUDED.ban_reason,
		    risk_flags = EXCLUDED.risk_flags,
		    updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Pool.Exec(ctx, query,
		ts.UserID,
		ts.Status,
		ts.WarningCount,
		ts.SuspensionUntil,
		ts.BanReason,
		ts.RiskFlags,
	)

	return database.MapPostgresError(err)
}

// LiftElapsedSuspensions moves accounts whose suspension window has passed
// back to active. Returns the number of accounts lifted.
func (r *TrustStateRepository) LiftElapsedSuspensions(ctx context.Context) (int64, error) {
	query := `
		UPDATE trust_states
		SET status = $1, suspension_until = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE status = $2 AND suspension_until <= CURRENT_TIMESTAMP
	`

	tag, err := r.db.Pool.Exec(ctx, query, models.TrustActive, models.TrustSuspended)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// AddWarning appends one unacknowledged warning and bumps the cached count on
// the trust state row.
func (r *TrustStateRepository) AddWarning(ctx context.Context, w *models.Warning) error {
	query := `
		INSERT INTO user_warnings (id, user_id, reason, flags, risk_score, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		w.ID,
		w.UserID,
		w.Reason,
		w.Flags,
		w.RiskScore,
		w.CreatedAt,
	)

	return database.MapPostgresError(err)
}

// CountUnacknowledgedWarnings returns the user's outstanding warning count.
func (r *TrustStateRepository) CountUnacknowledgedWarnings(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM user_warnings
		WHERE user_id = $1 AND acknowledged = false
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ClearWarnings removes all warnings for a user. Part of the admin unban path.
func (r *TrustStateRepository) ClearWarnings(ctx context.Context, userID string) error {
	query := `DELETE FROM user_warnings WHERE user_id = $1`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

// ListSuspicious returns accounts that are suspended, banned, or carry risk
// flags, with their outstanding warning counts.
func (r *TrustStateRepository) ListSuspicious(ctx context.Context, limit int) ([]*models.SuspiciousUser, error) {
	query := `
		SELECT u.id, u.email, ts.status, ts.risk_flags,
		       (SELECT COUNT(*) FROM user_warnings w WHERE w.user_id = u.id AND w.acknowledged = false)
		FROM trust_states ts
		JOIN users u ON u.id = ts.user_id
		WHERE ts.status IN ($1, $2) OR COALESCE(array_length(ts.risk_flags, 1), 0) > 0
		ORDER BY ts.updated_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, models.TrustSuspended, models.TrustBanned, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var users []*models.SuspiciousUser
	for rows.Next() {
		var su models.SuspiciousUser
		if err := rows.Scan(&su.UserID, &su.Email, &su.Status, &su.RiskFlags, &su.WarningCount); err != nil {
			return nil, err
		}
		users = append(users, &su)
	}

	return users, rows.Err()
}

// ListNonBannedUserIDs returns the ids of accounts eligible for batch
// re-scoring, capped at limit.
func (r *TrustStateRepository) ListNonBannedUserIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT u.id
		FROM users u
		LEFT JOIN trust_states ts ON ts.user_id = u.id
		WHERE ts.status IS NULL OR ts.status <> $1
		ORDER BY u.created_at
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, models.TrustBanned, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
