package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/saqrlabs/trustcore/internal/database"
)

// SecurityEventRepository persists the structured security events the core
// emits (device mismatches, trust transitions, redemption failures) so an
// external pipeline can consume them from the database as well as the log
// stream.
type SecurityEventRepository struct {
	db *database.DB
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Create appends one security event with an arbitrary detail payload.
func (r *SecurityEventRepository) Create(ctx context.Context, eventType, userID string, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO security_events (event_type, user_id, detail, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.db.Pool.Exec(ctx, query, eventType, userID, payload, time.Now().UTC())
	return database.MapPostgresError(err)
}

// CountByType returns the number of events of one type for a user since the
// given time.
func (r *SecurityEventRepository) CountByType(ctx context.Context, eventType, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM security_events
		WHERE event_type = $1 AND user_id = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, eventType, userID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}
