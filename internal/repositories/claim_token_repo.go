package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/models"
)

// ClaimTokenRepository handles persistence of single-use claim tokens.
type ClaimTokenRepository struct {
	db *database.DB
}

// NewClaimTokenRepository creates a new ClaimTokenRepository
func NewClaimTokenRepository(db *database.DB) *ClaimTokenRepository {
	return &ClaimTokenRepository{db: db}
}

// Create persists a freshly issued token.
func (r *ClaimTokenRepository) Create(ctx context.Context, token *models.ClaimToken) error {
	query := `
		INSERT INTO claim_tokens (token, user_id, issued_at, expires_at, device_fingerprint, ip_address, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, false)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		token.Token,
		token.UserID,
		token.IssuedAt,
		token.ExpiresAt,
		token.DeviceFingerprint,
		token.IPAddress,
	)

	return database.MapPostgresError(err)
}

// GetByToken returns the token row, consumed or not.
func (r *ClaimTokenRepository) GetByToken(ctx context.Context, token string) (*models.ClaimToken, error) {
	query := `
		SELECT token, user_id, issued_at, expires_at, device_fingerprint, ip_address, consumed, consumed_at
		FROM claim_tokens
		WHERE token = $1
	`

	var ct models.ClaimToken
	err := r.db.Pool.QueryRow(ctx, query, token).Scan(
		&ct.Token,
		&ct.UserID,
		&ct.IssuedAt,
		&ct.ExpiresAt,
		&ct.DeviceFingerprint,
		&ct.IPAddress,
		&ct.Consumed,
		&ct.ConsumedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &ct, nil
}

// CountIssuedSince returns how many tokens were issued to a user since the
// given time. Issuance throttling reads this, never a client-supplied counter.
func (r *ClaimTokenRepository) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM claim_tokens
		WHERE user_id = $1 AND issued_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ConsumeTx flips consumed from false to true within the given transaction.
// The WHERE clause makes the flip conditional: of N concurrent redemptions of
// the same token, exactly one sees RowsAffected()==1 and the rest get
// ErrInvalidToken. This is the at-most-once redemption guarantee.
func (r *ClaimTokenRepository) ConsumeTx(ctx context.Context, tx pgx.Tx, token string, at time.Time) error {
	query := `
		UPDATE claim_tokens
		SET consumed = true, consumed_at = $2
		WHERE token = $1 AND consumed = false
	`

	tag, err := tx.Exec(ctx, query, token, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidToken
	}

	return nil
}

// DeleteDeadTokensBefore reaps tokens that are logically dead (expired or
// consumed) and older than the cutoff.
func (r *ClaimTokenRepository) DeleteDeadTokensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM claim_tokens
		WHERE (consumed = true OR expires_at < CURRENT_TIMESTAMP)
		  AND issued_at < $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
