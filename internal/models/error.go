package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountBanned    = errors.New("account is banned")
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountLocked    = errors.New("account is temporarily locked")

	// Rate limiting errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrDailyLimitReached = errors.New("daily reward limit reached")

	// Claim token errors. Each maps to a distinct redemption reason code;
	// a token that fails any of these is terminal and must be re-issued.
	ErrInvalidToken         = errors.New("invalid or already consumed token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrInsufficientDuration = errors.New("watch duration too short")
	ErrInvalidDuration      = errors.New("watch duration out of range")
	ErrDeviceMismatch       = errors.New("device does not match token issuance")

	// ErrCreditFailed indicates the reward credit step failed after all
	// validation passed. The token must not remain consumed in this case.
	ErrCreditFailed = errors.New("reward credit failed")
)

// RetryAfterError wraps a lockout or throttle sentinel with the number of
// seconds the client should wait before trying again. errors.Is against the
// wrapped sentinel still matches.
type RetryAfterError struct {
	Err               error
	RetryAfterSeconds int
}

func (e *RetryAfterError) Error() string { return e.Err.Error() }

func (e *RetryAfterError) Unwrap() error { return e.Err }

// RetryAfter extracts the retry hint carried by err, if any.
func RetryAfter(err error) (int, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) {
		return ra.RetryAfterSeconds, true
	}
	return 0, false
}

// RedemptionReason returns the wire-level reason code for a redemption failure,
// or an empty string if the error is not a redemption error.
func RedemptionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrInsufficientDuration):
		return "insufficient_duration"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrDeviceMismatch):
		return "device_mismatch"
	case errors.Is(err, ErrDailyLimitReached):
		return "daily_limit_reached"
	case errors.Is(err, ErrCreditFailed):
		return "credit_failed"
	default:
		return ""
	}
}
