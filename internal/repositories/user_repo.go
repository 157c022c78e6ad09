package repositories

import (
	"context"

	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/models"
)

// UserRepository resolves identities to account records. The wider user CRUD
// surface lives outside this core; the guard and fraud signals only need
// lookups by email and id.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail returns the user for a normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, role, created_at
		FROM users
		WHERE email = $1
	`

	var u models.User
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &u, nil
}

// GetByID returns the user for the canonical account id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, role, created_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &u, nil
}

// EmailForUser returns the address on file for the given account id.
func (r *UserRepository) EmailForUser(ctx context.Context, userID string) (string, error) {
	query := `SELECT email FROM users WHERE id = $1`

	var email string
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&email); err != nil {
		return "", database.MapPostgresError(err)
	}
	return email, nil
}

// Create inserts a user. Used by the admin bootstrap path and tests.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return user, nil
}
