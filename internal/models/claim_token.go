package models

import "time"

// ClaimToken is a short-lived, single-use credential authorizing exactly one
// reward redemption. The token is bound at issuance to the user, device
// fingerprint, and origin IP; redemption must present the same device.
//
// Consumed flips from false to true exactly once, via a conditional update in
// the repository. Tokens are never deleted by the core; expired and consumed
// rows are reaped by the background cleanup job.
type ClaimToken struct {
	Token             string     `db:"token"`
	UserID            string     `db:"user_id"`
	IssuedAt          time.Time  `db:"issued_at"`
	ExpiresAt         time.Time  `db:"expires_at"`
	DeviceFingerprint string     `db:"device_fingerprint"`
	IPAddress         string     `db:"ip_address"`
	Consumed          bool       `db:"consumed"`
	ConsumedAt        *time.Time `db:"consumed_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *ClaimToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
