package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saqrlabs/trustcore/internal/events"
	"github.com/saqrlabs/trustcore/internal/models"
	"github.com/saqrlabs/trustcore/internal/services"
)

// MockRiskAssessor implements RiskAssessor for testing
type MockRiskAssessor struct {
	score float64
	flags []string
}

func (m *MockRiskAssessor) Assess(ctx context.Context, userID string) (*models.RiskAssessment, error) {
	return &models.RiskAssessment{
		ID:         "assessment-1",
		UserID:     userID,
		RiskScore:  m.score,
		Flags:      m.flags,
		ComputedAt: time.Now(),
	}, nil
}

// MockTrustStateRepository implements TrustStateRepository for testing
type MockTrustStateRepository struct {
	states   map[string]*models.TrustState
	warnings map[string][]*models.Warning
}

func NewMockTrustStateRepository() *MockTrustStateRepository {
	return &MockTrustStateRepository{
		states:   make(map[string]*models.TrustState),
		warnings: make(map[string][]*models.Warning),
	}
}

func (m *MockTrustStateRepository) Get(ctx context.Context, userID string) (*models.TrustState, error) {
	if s, ok := m.states[userID]; ok {
		return s, nil
	}
	return &models.TrustState{UserID: userID, Status: models.TrustActive}, nil
}

func (m *MockTrustStateRepository) Upsert(ctx context.Context, ts *models.TrustState) error {
	m.states[ts.UserID] = ts
	return nil
}

func (m *MockTrustStateRepository) AddWarning(ctx context.Context, w *models.Warning) error {
	m.warnings[w.UserID] = append(m.warnings[w.UserID], w)
	return nil
}

func (m *MockTrustStateRepository) CountUnacknowledgedWarnings(ctx context.Context, userID string) (int, error) {
	return len(m.warnings[userID]), nil
}

func (m *MockTrustStateRepository) ClearWarnings(ctx context.Context, userID string) error {
	delete(m.warnings, userID)
	return nil
}

func (m *MockTrustStateRepository) ListSuspicious(ctx context.Context, limit int) ([]*models.SuspiciousUser, error) {
	var out []*models.SuspiciousUser
	for id, s := range m.states {
		if s.Status == models.TrustSuspended || s.Status == models.TrustBanned || len(s.RiskFlags) > 0 {
			out = append(out, &models.SuspiciousUser{
				UserID:       id,
				Status:       s.Status,
				WarningCount: len(m.warnings[id]),
				RiskFlags:    s.RiskFlags,
			})
		}
	}
	return out, nil
}

func (m *MockTrustStateRepository) ListNonBannedUserIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	for id, s := range m.states {
		if s.Status != models.TrustBanned {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MockRiskAssessmentWriter implements RiskAssessmentWriter for testing
type MockRiskAssessmentWriter struct {
	created []*models.RiskAssessment
}

func (m *MockRiskAssessmentWriter) Create(ctx context.Context, a *models.RiskAssessment) error {
	m.created = append(m.created, a)
	return nil
}

func (m *MockRiskAssessmentWriter) ListByUser(ctx context.Context, userID string, limit int) ([]*models.RiskAssessment, error) {
	return m.created, nil
}

func testTrustService(engine *MockRiskAssessor, states *MockTrustStateRepository, assessments *MockRiskAssessmentWriter) *services.TrustService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	audit := services.NewAuditService(&MockSecurityEventRepository{}, logger)
	config := services.TrustPolicyConfig{
		LowRiskThreshold:    0.30,
		MediumRiskThreshold: 0.60,
		HighRiskThreshold:   0.85,
		WarningThreshold:    3,
		BanThreshold:        5,
		SuspensionDuration:  24 * time.Hour,
		BatchSize:           500,
	}
	return services.NewTrustService(engine, states, assessments, audit, events.NopPublisher{}, config, logger)
}

func TestTrustAnalyzeNoActionBelowLowThreshold(t *testing.T) {
	states := NewMockTrustStateRepository()
	assessments := &MockRiskAssessmentWriter{}
	svc := testTrustService(&MockRiskAssessor{score: 0.29}, states, assessments)

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionNone, assessment.ActionTaken)
	assert.Len(t, assessments.created, 1, "every run appends an assessment record")

	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustActive, state.Status)
}

func TestTrustAnalyzeWarnsAtLowThreshold(t *testing.T) {
	states := NewMockTrustStateRepository()
	assessments := &MockRiskAssessmentWriter{}
	svc := testTrustService(&MockRiskAssessor{score: 0.30, flags: []string{"bot_like_timing"}}, states, assessments)

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionWarningIssued, assessment.ActionTaken)

	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustWarned, state.Status)
	assert.Equal(t, 1, state.WarningCount)
	assert.Len(t, states.warnings["user-1"], 1)
}

func TestTrustAnalyzeSuspendsAtMediumThreshold(t *testing.T) {
	states := NewMockTrustStateRepository()
	assessments := &MockRiskAssessmentWriter{}
	svc := testTrustService(&MockRiskAssessor{score: 0.60}, states, assessments)

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionSuspended, assessment.ActionTaken)

	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustSuspended, state.Status)
	assert.NotNil(t, state.SuspensionUntil)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *state.SuspensionUntil, 2*time.Second)
}

func TestTrustAnalyzeBansAtHighThreshold(t *testing.T) {
	states := NewMockTrustStateRepository()
	assessments := &MockRiskAssessmentWriter{}
	svc := testTrustService(&MockRiskAssessor{score: 0.85, flags: []string{"impossible_earning_rate"}}, states, assessments)

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionBanned, assessment.ActionTaken)

	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustBanned, state.Status)
	assert.NotNil(t, state.BanReason)
}

func TestTrustAnalyzeSuspendsAtWarningThreshold(t *testing.T) {
	states := NewMockTrustStateRepository()
	for i := 0; i < 3; i++ {
		_ = states.AddWarning(context.Background(), &models.Warning{ID: "w", UserID: "user-1"})
	}
	svc := testTrustService(&MockRiskAssessor{score: 0.10}, states, &MockRiskAssessmentWriter{})

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionSuspended, assessment.ActionTaken)
}

func TestTrustAnalyzeBansAtWarningBanThreshold(t *testing.T) {
	states := NewMockTrustStateRepository()
	for i := 0; i < 5; i++ {
		_ = states.AddWarning(context.Background(), &models.Warning{ID: "w", UserID: "user-1"})
	}
	svc := testTrustService(&MockRiskAssessor{score: 0.10}, states, &MockRiskAssessmentWriter{})

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionBanned, assessment.ActionTaken)
}

func TestTrustAnalyzeBannedIsTerminal(t *testing.T) {
	states := NewMockTrustStateRepository()
	states.states["user-1"] = &models.TrustState{UserID: "user-1", Status: models.TrustBanned}
	assessments := &MockRiskAssessmentWriter{}
	svc := testTrustService(&MockRiskAssessor{score: 0.0}, states, assessments)

	assessment, err := svc.Analyze(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ActionNone, assessment.ActionTaken)
	assert.Len(t, assessments.created, 1)

	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustBanned, state.Status, "a clean score never lifts a ban")
}

func TestTrustUnbanRestoresAndClearsWarnings(t *testing.T) {
	states := NewMockTrustStateRepository()
	reason := "risk score 0.90"
	states.states["user-1"] = &models.TrustState{UserID: "user-1", Status: models.TrustBanned, BanReason: &reason}
	states.warnings["user-1"] = []*models.Warning{{ID: "w", UserID: "user-1"}}
	svc := testTrustService(&MockRiskAssessor{}, states, &MockRiskAssessmentWriter{})

	err := svc.Unban(context.Background(), "admin-1", "user-1")

	assert.NoError(t, err)
	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustActive, state.Status)
	assert.Nil(t, state.BanReason)
	assert.Zero(t, state.WarningCount)
	assert.Empty(t, states.warnings["user-1"])
}

func TestTrustUnbanRejectsNonBannedAccount(t *testing.T) {
	states := NewMockTrustStateRepository()
	svc := testTrustService(&MockRiskAssessor{}, states, &MockRiskAssessmentWriter{})

	err := svc.Unban(context.Background(), "admin-1", "user-1")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestTrustLiftSuspensionOnlyAffectsSuspended(t *testing.T) {
	states := NewMockTrustStateRepository()
	until := time.Now().Add(-time.Hour)
	states.states["user-1"] = &models.TrustState{UserID: "user-1", Status: models.TrustSuspended, SuspensionUntil: &until}
	svc := testTrustService(&MockRiskAssessor{}, states, &MockRiskAssessmentWriter{})

	assert.NoError(t, svc.LiftSuspension(context.Background(), "user-1"))
	state, _ := states.Get(context.Background(), "user-1")
	assert.Equal(t, models.TrustActive, state.Status)
	assert.Nil(t, state.SuspensionUntil)

	// No-op for an active account
	assert.NoError(t, svc.LiftSuspension(context.Background(), "user-2"))
	_, ok := states.states["user-2"]
	assert.False(t, ok)
}

func TestTrustBatchAnalyzeCountsActions(t *testing.T) {
	states := NewMockTrustStateRepository()
	states.states["user-1"] = &models.TrustState{UserID: "user-1", Status: models.TrustActive}
	states.states["user-2"] = &models.TrustState{UserID: "user-2", Status: models.TrustActive}
	svc := testTrustService(&MockRiskAssessor{score: 0.70}, states, &MockRiskAssessmentWriter{})

	result, err := svc.BatchAnalyze(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Analyzed)
	assert.Equal(t, 2, result.Suspended)
	assert.Zero(t, result.Banned)
}
