package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/saqrlabs/trustcore/internal/auth"
	"github.com/saqrlabs/trustcore/internal/handlers"
	"github.com/saqrlabs/trustcore/internal/middleware"
	"github.com/saqrlabs/trustcore/internal/repositories"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	rewardsHandler *handlers.RewardsHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
) {
	// Rate limiting config for auth endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()
	userRateLimits := middleware.DefaultUserRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		// Rewarded ad view lifecycle
		rewardLimit := middleware.RateLimitByUserID(userRateLimits, "reward")
		r.With(rewardLimit).Post("/rewards/validate-ad-view", rewardsHandler.ValidateAdView)
		r.With(rewardLimit).Post("/rewards/complete-ad-view", rewardsHandler.CompleteAdView)
		r.With(middleware.RateLimitByUserID(userRateLimits, "read")).Get("/rewards/stats", rewardsHandler.Stats)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin"))
			r.Use(middleware.RateLimitByUserID(userRateLimits, "admin"))
			r.Post("/security/analyze/{userID}", securityHandler.AnalyzeUser)
			r.Post("/security/batch-analyze", securityHandler.BatchAnalyze)
			r.Get("/security/suspicious-users", securityHandler.SuspiciousUsers)
			r.Get("/security/trust-state/{userID}", securityHandler.TrustState)
			r.Post("/security/unban/{userID}", securityHandler.UnbanUser)
		})
	})
}
