package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/saqrlabs/trustcore/internal/auth"
)

// RateLimitConfig holds IP-based rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit returns the rate limit for login and registration.
// Deliberately tight: these endpoints are the credential-stuffing surface.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// UserRateLimitConfig holds per-user budgets for authenticated endpoints.
// The per-user issuance throttle lives in the token service; these limits
// only stop a single account from hammering the HTTP surface.
type UserRateLimitConfig struct {
	RewardOperationsPerMinute int
	ReadOperationsPerMinute   int
	AdminOperationsPerMinute  int
}

// DefaultUserRateLimit returns the per-user budgets for authenticated routes
func DefaultUserRateLimit() UserRateLimitConfig {
	return UserRateLimitConfig{
		RewardOperationsPerMinute: 30,
		ReadOperationsPerMinute:   100,
		AdminOperationsPerMinute:  60,
	}
}

// RateLimitByUserID creates a middleware that rate limits by the
// authenticated user ID, falling back to client IP when no user is present.
// The operation class selects which budget applies: "reward", "read" or
// "admin".
func RateLimitByUserID(config UserRateLimitConfig, operation string) func(next http.Handler) http.Handler {
	var limit int
	switch operation {
	case "reward":
		limit = config.RewardOperationsPerMinute
	case "admin":
		limit = config.AdminOperationsPerMinute
	default:
		limit = config.ReadOperationsPerMinute
	}

	return httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil {
				return operation + ":" + claims.UserID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}
