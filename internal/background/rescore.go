package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/saqrlabs/trustcore/internal/models"
)

// BatchAnalyzer re-scores all eligible accounts in one sweep.
type BatchAnalyzer interface {
	BatchAnalyze(ctx context.Context) (*models.BatchAnalysisResult, error)
}

// RescoreManager periodically re-runs the fraud engine over all non-banned
// accounts so slow-building abuse patterns surface without waiting for an
// admin to ask.
type RescoreManager struct {
	trust    BatchAnalyzer
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
}

// NewRescoreManager creates a new rescore manager
func NewRescoreManager(trust BatchAnalyzer, interval time.Duration, logger *slog.Logger) *RescoreManager {
	return &RescoreManager{
		trust:    trust,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic rescore task
func (rm *RescoreManager) Start(ctx context.Context) {
	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.runRescore(ctx)
		case <-rm.stopCh:
			rm.logger.Info("rescore manager stopped")
			return
		case <-ctx.Done():
			rm.logger.Info("rescore manager context cancelled")
			return
		}
	}
}

func (rm *RescoreManager) runRescore(ctx context.Context) {
	rescoreCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := rm.trust.BatchAnalyze(rescoreCtx); err != nil {
		rm.logger.Error("batch rescore failed", slog.Any("error", err))
	}
}

// Stop signals the rescore manager to stop
func (rm *RescoreManager) Stop() {
	close(rm.stopCh)
}
