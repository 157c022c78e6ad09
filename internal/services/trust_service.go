package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saqrlabs/trustcore/internal/events"
	"github.com/saqrlabs/trustcore/internal/models"
)

// RiskAssessor produces a fresh risk assessment for one user.
type RiskAssessor interface {
	Assess(ctx context.Context, userID string) (*models.RiskAssessment, error)
}

// TrustStateRepository defines the standing and warning-ledger operations the
// trust machine needs.
type TrustStateRepository interface {
	Get(ctx context.Context, userID string) (*models.TrustState, error)
	Upsert(ctx context.Context, ts *models.TrustState) error
	AddWarning(ctx context.Context, w *models.Warning) error
	CountUnacknowledgedWarnings(ctx context.Context, userID string) (int, error)
	ClearWarnings(ctx context.Context, userID string) error
	ListSuspicious(ctx context.Context, limit int) ([]*models.SuspiciousUser, error)
	ListNonBannedUserIDs(ctx context.Context, limit int) ([]string, error)
}

// RiskAssessmentWriter persists the append-only assessment trail.
type RiskAssessmentWriter interface {
	Create(ctx context.Context, a *models.RiskAssessment) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.RiskAssessment, error)
}

// TrustPolicyConfig holds the thresholds driving state transitions.
type TrustPolicyConfig struct {
	LowRiskThreshold    float64
	MediumRiskThreshold float64
	HighRiskThreshold   float64
	WarningThreshold    int
	BanThreshold        int
	SuspensionDuration  time.Duration
	BatchSize           int
}

// TrustService runs the fraud engine against accounts and applies the
// resulting transitions. It is the only writer of trust states: issuance,
// redemption, and admin surfaces all read standing through it.
type TrustService struct {
	engine      RiskAssessor
	states      TrustStateRepository
	assessments RiskAssessmentWriter
	audit       *AuditService
	publisher   events.Publisher
	config      TrustPolicyConfig
	logger      *slog.Logger
}

// NewTrustService creates a new TrustService
func NewTrustService(engine RiskAssessor, states TrustStateRepository, assessments RiskAssessmentWriter, audit *AuditService, publisher events.Publisher, config TrustPolicyConfig, logger *slog.Logger) *TrustService {
	return &TrustService{
		engine:      engine,
		states:      states,
		assessments: assessments,
		audit:       audit,
		publisher:   publisher,
		config:      config,
		logger:      logger,
	}
}

// GetState returns a user's current standing.
func (s *TrustService) GetState(ctx context.Context, userID string) (*models.TrustState, error) {
	return s.states.Get(ctx, userID)
}

// LiftSuspension moves a suspended account back to active. Warning history is
// untouched; only an unban clears it.
func (s *TrustService) LiftSuspension(ctx context.Context, userID string) error {
	state, err := s.states.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load trust state: %w", err)
	}
	if state.Status != models.TrustSuspended {
		return nil
	}

	state.Status = models.TrustActive
	state.SuspensionUntil = nil
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to lift suspension: %w", err)
	}

	s.logger.Info("suspension lifted", slog.String("user_id", userID))
	return nil
}

// Analyze runs the full pipeline for one user: score, persist the assessment,
// and apply any transition the score or warning count calls for. Every run
// appends an assessment record, including runs that take no action.
func (s *TrustService) Analyze(ctx context.Context, userID string) (*models.RiskAssessment, error) {
	state, err := s.states.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust state: %w", err)
	}

	assessment, err := s.engine.Assess(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to assess user: %w", err)
	}

	assessment.ActionTaken = models.ActionNone

	// Banned is terminal: record the run but change nothing.
	if state.Status != models.TrustBanned {
		action, err := s.applyTransition(ctx, state, assessment)
		if err != nil {
			return nil, err
		}
		assessment.ActionTaken = action
	}

	if err := s.assessments.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to persist assessment: %w", err)
	}

	return assessment, nil
}

// applyTransition moves the account per the score bands and the accumulated
// warning count, and returns the action taken.
func (s *TrustService) applyTransition(ctx context.Context, state *models.TrustState, assessment *models.RiskAssessment) (string, error) {
	warnings, err := s.states.CountUnacknowledgedWarnings(ctx, state.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to count warnings: %w", err)
	}

	score := assessment.RiskScore

	switch {
	case score >= s.config.HighRiskThreshold || warnings >= s.config.BanThreshold:
		return models.ActionBanned, s.ban(ctx, state, assessment)

	case score >= s.config.MediumRiskThreshold || warnings >= s.config.WarningThreshold:
		return models.ActionSuspended, s.suspend(ctx, state, assessment)

	case score >= s.config.LowRiskThreshold:
		return models.ActionWarningIssued, s.warn(ctx, state, assessment)
	}

	return models.ActionNone, nil
}

func (s *TrustService) warn(ctx context.Context, state *models.TrustState, assessment *models.RiskAssessment) error {
	warning := &models.Warning{
		ID:        uuid.NewString(),
		UserID:    state.UserID,
		Reason:    "elevated risk score",
		Flags:     assessment.Flags,
		RiskScore: assessment.RiskScore,
		CreatedAt: time.Now(),
	}
	if err := s.states.AddWarning(ctx, warning); err != nil {
		return fmt.Errorf("failed to add warning: %w", err)
	}

	state.Status = models.TrustWarned
	state.WarningCount++
	state.RiskFlags = assessment.Flags
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to update trust state: %w", err)
	}

	s.audit.LogTrustTransition(ctx, state.UserID, models.ActionWarningIssued, assessment.RiskScore, assessment.Flags)
	s.publisher.Publish(events.SecurityEvent{
		Type:       events.TypeAccountWarned,
		UserID:     state.UserID,
		OccurredAt: time.Now(),
		Detail:     map[string]string{"risk_score": fmt.Sprintf("%.2f", assessment.RiskScore)},
	})

	return nil
}

func (s *TrustService) suspend(ctx context.Context, state *models.TrustState, assessment *models.RiskAssessment) error {
	until := time.Now().Add(s.config.SuspensionDuration)
	state.Status = models.TrustSuspended
	state.SuspensionUntil = &until
	state.RiskFlags = assessment.Flags
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to update trust state: %w", err)
	}

	s.audit.LogTrustTransition(ctx, state.UserID, models.ActionSuspended, assessment.RiskScore, assessment.Flags)
	s.publisher.Publish(events.SecurityEvent{
		Type:       events.TypeAccountSuspended,
		UserID:     state.UserID,
		OccurredAt: time.Now(),
		Detail: map[string]string{
			"risk_score":       fmt.Sprintf("%.2f", assessment.RiskScore),
			"suspension_until": until.Format(time.RFC3339),
		},
	})

	return nil
}

func (s *TrustService) ban(ctx context.Context, state *models.TrustState, assessment *models.RiskAssessment) error {
	reason := fmt.Sprintf("risk score %.2f with flags %v", assessment.RiskScore, assessment.Flags)
	state.Status = models.TrustBanned
	state.SuspensionUntil = nil
	state.BanReason = &reason
	state.RiskFlags = assessment.Flags
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to update trust state: %w", err)
	}

	s.audit.LogTrustTransition(ctx, state.UserID, models.ActionBanned, assessment.RiskScore, assessment.Flags)
	s.publisher.Publish(events.SecurityEvent{
		Type:       events.TypeAccountBanned,
		UserID:     state.UserID,
		OccurredAt: time.Now(),
		Detail:     map[string]string{"reason": reason},
	})

	return nil
}

// BatchAnalyze re-scores all non-banned accounts and returns transition
// counts. Per-user failures are logged and skipped so one bad account never
// stalls the sweep.
func (s *TrustService) BatchAnalyze(ctx context.Context) (*models.BatchAnalysisResult, error) {
	ids, err := s.states.ListNonBannedUserIDs(ctx, s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := &models.BatchAnalysisResult{}
	for _, id := range ids {
		assessment, err := s.Analyze(ctx, id)
		if err != nil {
			s.logger.Error("batch analysis failed for user",
				slog.String("user_id", id),
				slog.Any("error", err))
			continue
		}

		result.Analyzed++
		switch assessment.ActionTaken {
		case models.ActionWarningIssued:
			result.WarningsIssued++
		case models.ActionSuspended:
			result.Suspended++
		case models.ActionBanned:
			result.Banned++
		}
	}

	s.logger.Info("batch analysis complete",
		slog.Int("analyzed", result.Analyzed),
		slog.Int("warnings_issued", result.WarningsIssued),
		slog.Int("suspended", result.Suspended),
		slog.Int("banned", result.Banned))

	return result, nil
}

// Unban is the only path out of banned. It restores active standing and
// clears the warning ledger so the account starts clean.
func (s *TrustService) Unban(ctx context.Context, adminID, userID string) error {
	state, err := s.states.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load trust state: %w", err)
	}
	if state.Status != models.TrustBanned {
		return fmt.Errorf("%w: account is not banned", models.ErrBadRequest)
	}

	state.Status = models.TrustActive
	state.WarningCount = 0
	state.SuspensionUntil = nil
	state.BanReason = nil
	state.RiskFlags = nil
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to update trust state: %w", err)
	}

	if err := s.states.ClearWarnings(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear warnings: %w", err)
	}

	s.audit.LogAdminAction(ctx, adminID, userID, "unban")
	s.publisher.Publish(events.SecurityEvent{
		Type:       events.TypeAccountUnbanned,
		UserID:     userID,
		OccurredAt: time.Now(),
		Detail:     map[string]string{"admin_id": adminID},
	})

	s.logger.Info("account unbanned",
		slog.String("user_id", userID),
		slog.String("admin_id", adminID))

	return nil
}

// ListSuspicious returns accounts needing review.
func (s *TrustService) ListSuspicious(ctx context.Context, limit int) ([]*models.SuspiciousUser, error) {
	return s.states.ListSuspicious(ctx, limit)
}

// AssessmentHistory returns a user's recent assessment trail.
func (s *TrustService) AssessmentHistory(ctx context.Context, userID string, limit int) ([]*models.RiskAssessment, error) {
	return s.assessments.ListByUser(ctx, userID, limit)
}
