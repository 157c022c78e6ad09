package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/models"
)

// LoginAttemptRepository handles the attempt ledger and lockout rows.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt appends a login attempt to the ledger.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, succeeded, ip_address, user_agent, attempt_time)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.Succeeded,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
	)

	return database.MapPostgresError(err)
}

// CountFailedAttempts returns the number of failed attempts for an email since
// the given time.
func (r *LoginAttemptRepository) CountFailedAttempts(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND succeeded = false AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// DeleteFailedAttempts removes all failed attempts for an email. Called after
// a successful login, which forgives prior failures by policy.
func (r *LoginAttemptRepository) DeleteFailedAttempts(ctx context.Context, email string) error {
	query := `DELETE FROM login_attempts WHERE email = $1 AND succeeded = false`
	_, err := r.db.Pool.Exec(ctx, query, email)
	return database.MapPostgresError(err)
}

// GetLockout returns the lockout row for an email, or nil if none exists.
func (r *LoginAttemptRepository) GetLockout(ctx context.Context, email string) (*models.Lockout, error) {
	query := `SELECT email, locked_until, reason FROM login_lockouts WHERE email = $1`

	var lockout models.Lockout
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(&lockout.Email, &lockout.LockedUntil, &lockout.Reason)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &lockout, nil
}

// UpsertLockout atomically writes the lockout for an email. Concurrent failed
// attempts may race to this point; the ON CONFLICT update makes the final
// state identical regardless of ordering.
func (r *LoginAttemptRepository) UpsertLockout(ctx context.Context, email string, lockedUntil time.Time, reason string) error {
	query := `
		INSERT INTO login_lockouts (email, locked_until, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET locked_until = EXCLUDED.locked_until, reason = EXCLUDED.reason
	`

	_, err := r.db.Pool.Exec(ctx, query, email, lockedUntil, reason)
	return database.MapPostgresError(err)
}

// ClearLockout removes the lockout row for an email.
func (r *LoginAttemptRepository) ClearLockout(ctx context.Context, email string) error {
	query := `DELETE FROM login_lockouts WHERE email = $1`
	_, err := r.db.Pool.Exec(ctx, query, email)
	return database.MapPostgresError(err)
}

// SessionStartHours returns the distinct UTC hours-of-day at which successful
// logins occurred for a user's email since the given time. Feeds the session
// pattern signal.
func (r *LoginAttemptRepository) SessionStartHours(ctx context.Context, email string, since time.Time) ([]int, error) {
	query := `
		SELECT DISTINCT EXTRACT(HOUR FROM attempt_time AT TIME ZONE 'UTC')::int
		FROM login_attempts
		WHERE email = $1 AND succeeded = true AND attempt_time >= $2
	`

	rows, err := r.db.Pool.Query(ctx, query, email, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var hours []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}

	return hours, rows.Err()
}

// DeleteAttemptsBefore prunes ledger rows older than the cutoff. Used by the
// background cleanup job.
func (r *LoginAttemptRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempt_time < $1`
	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredLockouts removes lockout rows whose window has passed.
func (r *LoginAttemptRepository) DeleteExpiredLockouts(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_lockouts WHERE locked_until <= CURRENT_TIMESTAMP`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
