package models

import "time"

// TrustStatus is the closed set of account standings. Transitions move toward
// stricter states only, with two exceptions: an elapsed suspension lifts back
// to active automatically, and a ban is reversed only by an explicit admin
// action.
type TrustStatus string

const (
	TrustActive    TrustStatus = "active"
	TrustWarned    TrustStatus = "warned"
	TrustSuspended TrustStatus = "suspended"
	TrustBanned    TrustStatus = "banned"
)

// Valid reports whether the status is one of the known states.
func (s TrustStatus) Valid() bool {
	switch s {
	case TrustActive, TrustWarned, TrustSuspended, TrustBanned:
		return true
	}
	return false
}

// TrustState is the account's current standing. Mutated exclusively by the
// trust service; created implicitly at active on first assessment.
type TrustState struct {
	UserID          string      `db:"user_id"`
	Status          TrustStatus `db:"status"`
	WarningCount    int         `db:"warning_count"`
	SuspensionUntil *time.Time  `db:"suspension_until"`
	BanReason       *string     `db:"ban_reason"`
	RiskFlags       []string    `db:"risk_flags"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// SuspensionElapsed reports whether a suspended account's cooling-off period
// has passed at the given time.
func (t *TrustState) SuspensionElapsed(now time.Time) bool {
	return t.Status == TrustSuspended &&
		(t.SuspensionUntil == nil || !t.SuspensionUntil.After(now))
}

// Warning is one unacknowledged strike against an account. The accumulated
// count feeds the suspend/ban thresholds.
type Warning struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	Reason       string    `db:"reason"`
	Flags        []string  `db:"flags"`
	RiskScore    float64   `db:"risk_score"`
	Acknowledged bool      `db:"acknowledged"`
	CreatedAt    time.Time `db:"created_at"`
}
