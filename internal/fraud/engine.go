package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saqrlabs/trustcore/internal/models"
)

// Collector weights. Order matches the sub-score columns on
// models.RiskAssessment and the sum of all weights is 1.0.
const (
	weightViewingPattern = 0.25
	weightTimingAnomaly  = 0.20
	weightDevice         = 0.15
	weightIP             = 0.15
	weightVelocity       = 0.15
	weightSession        = 0.10
)

// Engine runs all six collectors against one user and aggregates their
// sub-scores into a weighted risk assessment.
type Engine struct {
	viewing  Collector
	timing   Collector
	device   Collector
	ip       Collector
	velocity Collector
	session  Collector
	logger   *slog.Logger
}

// NewEngine wires the standard collector set against the given data sources.
func NewEngine(activity ActivityHistory, accounts AccountReader, balances BalanceReader, sessions SessionStarts, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		viewing:  NewViewingPatternCollector(activity, cfg),
		timing:   NewTimingAnomalyCollector(activity, cfg),
		device:   NewDeviceMultiplicityCollector(activity, cfg),
		ip:       NewIPMultiplicityCollector(activity, cfg),
		velocity: NewEarningVelocityCollector(accounts, balances, cfg),
		session:  NewSessionPatternCollector(activity, accounts, sessions),
		logger:   logger,
	}
}

// Assess analyzes one user and returns a fresh assessment. A failing
// collector degrades gracefully: its sub-score contributes zero and the
// assessment is flagged so partial coverage is visible downstream.
func (e *Engine) Assess(ctx context.Context, userID string) (*models.RiskAssessment, error) {
	assessment := &models.RiskAssessment{
		ID:         uuid.NewString(),
		UserID:     userID,
		ComputedAt: time.Now(),
	}

	parts := []struct {
		collector Collector
		weight    float64
		target    *float64
	}{
		{e.viewing, weightViewingPattern, &assessment.SubScores.ViewingPattern},
		{e.timing, weightTimingAnomaly, &assessment.SubScores.TimingAnomaly},
		{e.device, weightDevice, &assessment.SubScores.DeviceMultiplicity},
		{e.ip, weightIP, &assessment.SubScores.IPMultiplicity},
		{e.velocity, weightVelocity, &assessment.SubScores.EarningVelocity},
		{e.session, weightSession, &assessment.SubScores.SessionPattern},
	}

	var score float64
	for _, p := range parts {
		sig, err := p.collector.Collect(ctx, userID)
		if err != nil {
			e.logger.Warn("fraud signal unavailable",
				"collector", p.collector.Name(),
				"user_id", userID,
				"error", err,
			)
			assessment.Flags = append(assessment.Flags, "signal_unavailable:"+p.collector.Name())
			continue
		}
		*p.target = sig.Score
		score += sig.Score * p.weight
		assessment.Flags = append(assessment.Flags, sig.Flags...)
	}

	assessment.RiskScore = clamp(score)
	return assessment, nil
}
