package models

import "time"

// User is the minimal account record the core needs: identity resolution for
// the login guard and the canonical user_id every other table keys on.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	Role         string    `db:"role"` // "user" or "admin"
	CreatedAt    time.Time `db:"created_at"`
}
