package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/saqrlabs/trustcore/internal/repositories"
)

// CleanupConfig holds the sweep interval and retention windows.
type CleanupConfig struct {
	Interval         time.Duration
	AttemptRetention time.Duration
	TokenRetention   time.Duration
}

// CleanupManager periodically removes dead claim tokens, stale login attempts,
// and expired lockouts, and lifts suspensions whose window has passed.
type CleanupManager struct {
	tokenRepo   *repositories.ClaimTokenRepository
	attemptRepo *repositories.LoginAttemptRepository
	trustRepo   *repositories.TrustStateRepository
	config      CleanupConfig
	logger      *slog.Logger
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	tokenRepo *repositories.ClaimTokenRepository,
	attemptRepo *repositories.LoginAttemptRepository,
	trustRepo *repositories.TrustStateRepository,
	config CleanupConfig,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		tokenRepo:   tokenRepo,
		attemptRepo: attemptRepo,
		trustRepo:   trustRepo,
		config:      config,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps each table once. Failures are independent: one failing
// sweep never blocks the others.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting retention cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	tokens, err := cm.tokenRepo.DeleteDeadTokensBefore(cleanupCtx, now.Add(-cm.config.TokenRetention))
	if err != nil {
		cm.logger.Error("failed to cleanup claim tokens", slog.Any("error", err))
	} else if tokens > 0 {
		cm.logger.Info("claim token cleanup completed", slog.Int64("rows_deleted", tokens))
	}

	attempts, err := cm.attemptRepo.DeleteAttemptsBefore(cleanupCtx, now.Add(-cm.config.AttemptRetention))
	if err != nil {
		cm.logger.Error("failed to cleanup login attempts", slog.Any("error", err))
	} else if attempts > 0 {
		cm.logger.Info("login attempt cleanup completed", slog.Int64("rows_deleted", attempts))
	}

	lockouts, err := cm.attemptRepo.DeleteExpiredLockouts(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup lockouts", slog.Any("error", err))
	} else if lockouts > 0 {
		cm.logger.Info("lockout cleanup completed", slog.Int64("rows_deleted", lockouts))
	}

	lifted, err := cm.trustRepo.LiftElapsedSuspensions(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to lift elapsed suspensions", slog.Any("error", err))
	} else if lifted > 0 {
		cm.logger.Info("elapsed suspensions lifted", slog.Int64("accounts", lifted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
