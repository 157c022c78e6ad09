// Package events carries the security events the trust core emits for
// external observability and notification pipelines. The core publishes and
// moves on; delivery happens asynchronously so notification latency and
// failures never affect request correctness.
package events

import "time"

// Event types emitted by the core.
const (
	TypeDeviceMismatch    = "device_mismatch"
	TypeRedemptionFailed  = "redemption_failed"
	TypeRewardCredited    = "reward_credited"
	TypeAccountWarned     = "account_warned"
	TypeAccountSuspended  = "account_suspended"
	TypeAccountBanned     = "account_banned"
	TypeAccountUnbanned   = "account_unbanned"
	TypeLoginLockout      = "login_lockout"
)

// SecurityEvent is one structured outbound event.
type SecurityEvent struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// Publisher accepts events for asynchronous delivery. Publish must never
// block the caller.
type Publisher interface {
	Publish(event SecurityEvent)
}

// NopPublisher discards all events. Used in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(SecurityEvent) {}
