package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saqrlabs/trustcore/internal/database"
)

// RewardLedgerRepository is the in-database implementation of the reward
// ledger boundary. Keeping balances in the same database lets the credit step
// share a transaction with the token flip, so the two commit or roll back as
// one unit.
type RewardLedgerRepository struct {
	db *database.DB
}

// NewRewardLedgerRepository creates a new RewardLedgerRepository
func NewRewardLedgerRepository(db *database.DB) *RewardLedgerRepository {
	return &RewardLedgerRepository{db: db}
}

// CreditTx adds points to a user's balance within the given transaction and
// returns the new total.
func (r *RewardLedgerRepository) CreditTx(ctx context.Context, tx pgx.Tx, userID string, points int) (int64, error) {
	query := `
		INSERT INTO reward_balances (user_id, points, total_earned)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET points = reward_balances.points + EXCLUDED.points,
		    total_earned = reward_balances.total_earned + EXCLUDED.total_earned
		RETURNING points
	`

	var total int64
	err := tx.QueryRow(ctx, query, userID, points).Scan(&total)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return total, nil
}

// GetBalance returns the user's current spendable points and lifetime total.
// A user with no row yet has a zero balance.
func (r *RewardLedgerRepository) GetBalance(ctx context.Context, userID string) (points, totalEarned int64, err error) {
	query := `SELECT points, total_earned FROM reward_balances WHERE user_id = $1`

	err = r.db.Pool.QueryRow(ctx, query, userID).Scan(&points, &totalEarned)
	if err == pgx.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, database.MapPostgresError(err)
	}

	return points, totalEarned, nil
}
