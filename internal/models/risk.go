package models

import "time"

// Actions a fraud assessment can take against an account.
const (
	ActionNone          = "none"
	ActionWarningIssued = "warning_issued"
	ActionSuspended     = "account_suspended"
	ActionBanned        = "account_banned"
)

// SubScores holds the bounded [0,1] output of each signal collector, in the
// same order the aggregation weights apply.
type SubScores struct {
	ViewingPattern     float64 `db:"viewing_pattern_score" json:"viewing_pattern"`
	TimingAnomaly      float64 `db:"timing_anomaly_score" json:"timing_anomaly"`
	DeviceMultiplicity float64 `db:"device_score" json:"device_multiplicity"`
	IPMultiplicity     float64 `db:"ip_score" json:"ip_multiplicity"`
	EarningVelocity    float64 `db:"velocity_score" json:"earning_velocity"`
	SessionPattern     float64 `db:"session_score" json:"session_pattern"`
}

// RiskAssessment is one append-only audit record of a fraud engine run.
// A record is written on every run regardless of the action taken.
type RiskAssessment struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	RiskScore   float64   `db:"risk_score"`
	Flags       []string  `db:"flags"`
	SubScores   SubScores `db:"-"`
	ActionTaken string    `db:"action_taken"`
	ComputedAt  time.Time `db:"computed_at"`
}

// SuspiciousUser is the admin-facing view of an account with outstanding
// warnings or a non-active standing.
type SuspiciousUser struct {
	UserID       string      `json:"user_id"`
	Email        string      `json:"email"`
	Status       TrustStatus `json:"status"`
	WarningCount int         `json:"warning_count"`
	RiskFlags    []string    `json:"risk_flags,omitempty"`
}

// BatchAnalysisResult summarizes a batch re-scoring run.
type BatchAnalysisResult struct {
	Analyzed       int `json:"analyzed"`
	WarningsIssued int `json:"warnings_issued"`
	Suspended      int `json:"suspended"`
	Banned         int `json:"banned"`
}
