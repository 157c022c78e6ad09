package repositories

import (
	"context"

	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/models"
)

// RiskAssessmentRepository handles the append-only fraud audit trail.
type RiskAssessmentRepository struct {
	db *database.DB
}

// NewRiskAssessmentRepository creates a new RiskAssessmentRepository
func NewRiskAssessmentRepository(db *database.DB) *RiskAssessmentRepository {
	return &RiskAssessmentRepository{db: db}
}

// Create appends one assessment record. Assessments are never updated.
func (r *RiskAssessmentRepository) Create(ctx context.Context, a *models.RiskAssessment) error {
	query := `
		INSERT INTO risk_assessments (
			id, user_id, risk_score, flags,
			viewing_pattern_score, timing_anomaly_score, device_score,
			ip_score, velocity_score, session_score,
			action_taken, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.RiskScore,
		a.Flags,
		a.SubScores.ViewingPattern,
		a.SubScores.TimingAnomaly,
		a.SubScores.DeviceMultiplicity,
		a.SubScores.IPMultiplicity,
		a.SubScores.EarningVelocity,
		a.SubScores.SessionPattern,
		a.ActionTaken,
		a.ComputedAt,
	)

	return database.MapPostgresError(err)
}

// ListByUser returns the most recent assessments for a user, newest first.
func (r *RiskAssessmentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.RiskAssessment, error) {
	query := `
		SELECT id, user_id, risk_score, flags,
		       viewing_pattern_score, timing_anomaly_score, device_score,
		       ip_score, velocity_score, session_score,
		       action_taken, computed_at
		FROM risk_assessments
		WHERE user_id = $1
		ORDER BY computed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var out []*models.RiskAssessment
	for rows.Next() {
		var a models.RiskAssessment
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.RiskScore,
			&a.Flags,
			&a.SubScores.ViewingPattern,
			&a.SubScores.TimingAnomaly,
			&a.SubScores.DeviceMultiplicity,
			&a.SubScores.IPMultiplicity,
			&a.SubScores.EarningVelocity,
			&a.SubScores.SessionPattern,
			&a.ActionTaken,
			&a.ComputedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}

	return out, rows.Err()
}
