package fraud

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedCollector struct {
	name  string
	score float64
}

func (c fixedCollector) Name() string { return c.name }

func (c fixedCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	return Signal{Score: c.score}, nil
}

func fixedEngine(score float64) *Engine {
	return &Engine{
		viewing:  fixedCollector{"viewing_pattern", score},
		timing:   fixedCollector{"timing_anomaly", score},
		device:   fixedCollector{"device_multiplicity", score},
		ip:       fixedCollector{"ip_multiplicity", score},
		velocity: fixedCollector{"earning_velocity", score},
		session:  fixedCollector{"session_pattern", score},
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func TestAssessAllMaxSubScoresYieldFullRisk(t *testing.T) {
	assessment, err := fixedEngine(1.0).Assess(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.InDelta(t, 1.0, assessment.RiskScore, 1e-9)
	assert.Equal(t, 1.0, assessment.SubScores.ViewingPattern)
	assert.Equal(t, 1.0, assessment.SubScores.SessionPattern)
}

func TestAssessAllZeroSubScoresYieldZeroRisk(t *testing.T) {
	assessment, err := fixedEngine(0).Assess(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Zero(t, assessment.RiskScore)
}
