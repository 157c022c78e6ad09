package models

import (
	"strings"
	"time"
)

// LoginAttempt represents a single login attempt in the system.
// Attempts are append-only; they are never updated after insertion.
type LoginAttempt struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	Succeeded   bool      `db:"succeeded"`
	IPAddress   string    `db:"ip_address"`
	UserAgent   string    `db:"user_agent"`
	AttemptTime time.Time `db:"attempt_time"`
}

// Lockout is the per-identity lockout row. A lockout is active while
// LockedUntil is in the future; a successful login clears it.
type Lockout struct {
	Email       string     `db:"email"`
	LockedUntil *time.Time `db:"locked_until"`
	Reason      *string    `db:"reason"`
}

// Active reports whether the lockout is still in effect at the given time.
func (l *Lockout) Active(now time.Time) bool {
	return l != nil && l.LockedUntil != nil && l.LockedUntil.After(now)
}

// LoginDecision is the outcome of a lockout check. When Allowed is false,
// RetryAfterSeconds says how long until the identity may try again; when
// Allowed is true, RemainingAttempts is the number of failures left before
// a lockout is applied.
type LoginDecision struct {
	Allowed           bool   `json:"allowed"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
}

// NormalizeIdentity canonicalizes an identity for all attempt and lockout
// lookups. Case and surrounding whitespace must never create distinct
// rate-limit buckets.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
