package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saqrlabs/trustcore/internal/events"
	"github.com/saqrlabs/trustcore/internal/models"
	pkglogger "github.com/saqrlabs/trustcore/pkg/logger"
)

// LoginAttemptRepository defines the ledger and lockout operations the guard
// needs.
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedAttempts(ctx context.Context, email string, since time.Time) (int, error)
	DeleteFailedAttempts(ctx context.Context, email string) error
	GetLockout(ctx context.Context, email string) (*models.Lockout, error)
	UpsertLockout(ctx context.Context, email string, lockedUntil time.Time, reason string) error
	ClearLockout(ctx context.Context, email string) error
}

// LoginGuardConfig holds the sliding-window lockout parameters.
type LoginGuardConfig struct {
	MaxAttempts     int
	AttemptWindow   time.Duration
	LockoutDuration time.Duration
}

// LoginGuardService decides whether an identity may attempt to log in, based
// on its recent failure history, and records every attempt either way.
type LoginGuardService struct {
	repo      LoginAttemptRepository
	config    LoginGuardConfig
	publisher events.Publisher
	logger    *slog.Logger
}

// NewLoginGuardService creates a new LoginGuardService
func NewLoginGuardService(repo LoginAttemptRepository, config LoginGuardConfig, publisher events.Publisher, logger *slog.Logger) *LoginGuardService {
	return &LoginGuardService{
		repo:      repo,
		config:    config,
		publisher: publisher,
		logger:    logger,
	}
}

// CheckLoginAllowed reports whether a login attempt for the identity may
// proceed. An active lockout rejects immediately without consulting the
// ledger; otherwise the trailing-window failure count decides, and crossing
// the cap writes a fresh lockout.
func (s *LoginGuardService) CheckLoginAllowed(ctx context.Context, identity, ipAddress string) (*models.LoginDecision, error) {
	email := models.NormalizeIdentity(identity)
	now := time.Now()

	lockout, err := s.repo.GetLockout(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check lockout: %w", err)
	}

	if lockout.Active(now) {
		remaining := int(lockout.LockedUntil.Sub(now).Seconds())
		return &models.LoginDecision{
			Allowed:           false,
			Message:           fmt.Sprintf("account temporarily locked, try again in %d minutes", remaining/60+1),
			RetryAfterSeconds: remaining,
		}, nil
	}

	windowStart := now.Add(-s.config.AttemptWindow)
	failed, err := s.repo.CountFailedAttempts(ctx, email, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	if failed >= s.config.MaxAttempts {
		lockedUntil := now.Add(s.config.LockoutDuration)
		if err := s.repo.UpsertLockout(ctx, email, lockedUntil, "too_many_failed_attempts"); err != nil {
			return nil, fmt.Errorf("failed to write lockout: %w", err)
		}
		// The lockout consumes the strikes: once it has been served, the
		// identity starts over with a clean window instead of re-locking on
		// the stale failures.
		if err := s.repo.DeleteFailedAttempts(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to reset attempts: %w", err)
		}

		s.logger.Warn("identity locked out",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Int("failed_attempts", failed),
			slog.String("ip_address", ipAddress),
			slog.Duration("lockout_duration", s.config.LockoutDuration))
		s.publisher.Publish(events.SecurityEvent{
			Type: events.TypeLoginLockout,
			Detail: map[string]string{
				"ip_address":      ipAddress,
				"failed_attempts": fmt.Sprintf("%d", failed),
			},
		})

		return &models.LoginDecision{
			Allowed:           false,
			Message:           fmt.Sprintf("account locked after repeated failures, try again in %d minutes", int(s.config.LockoutDuration.Minutes())),
			RetryAfterSeconds: int(s.config.LockoutDuration.Seconds()),
		}, nil
	}

	return &models.LoginDecision{
		Allowed:           true,
		RemainingAttempts: s.config.MaxAttempts - failed,
	}, nil
}

// RecordAttempt appends the attempt to the ledger. A successful login deletes
// the identity's failed attempts and clears any lockout: prior abuse is
// forgiven once the caller proves they hold the credentials. That reset is
// deliberate policy, not an oversight.
func (s *LoginGuardService) RecordAttempt(ctx context.Context, identity string, succeeded bool, ipAddress, userAgent string) error {
	email := models.NormalizeIdentity(identity)

	attempt := &models.LoginAttempt{
		Email:       email,
		Succeeded:   succeeded,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		AttemptTime: time.Now(),
	}

	if err := s.repo.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if succeeded {
		if err := s.repo.DeleteFailedAttempts(ctx, email); err != nil {
			return fmt.Errorf("failed to clear attempts: %w", err)
		}
		if err := s.repo.ClearLockout(ctx, email); err != nil {
			return fmt.Errorf("failed to clear lockout: %w", err)
		}
	}

	return nil
}
