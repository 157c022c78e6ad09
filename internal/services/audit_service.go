package services

import (
	"context"
	"log/slog"
	"time"
)

// SecurityEventRepository persists structured security events.
type SecurityEventRepository interface {
	Create(ctx context.Context, eventType, userID string, detail map[string]any) error
	CountByType(ctx context.Context, eventType, userID string, since time.Time) (int, error)
}

// AuditService records security events with a dual-write pattern: immediate
// slog output plus a database row. Persistence failures are logged but never
// propagate; an audit write must not fail the operation it describes.
type AuditService struct {
	repo   SecurityEventRepository
	logger *slog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(repo SecurityEventRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

// LogDeviceMismatch records a redemption presented from a different device
// than the one the token was issued to.
func (s *AuditService) LogDeviceMismatch(ctx context.Context, userID, issuedDevice, presentedDevice string) {
	s.logger.WarnContext(ctx, "device mismatch on redemption",
		slog.String("user_id", userID),
		slog.String("issued_device", issuedDevice),
		slog.String("presented_device", presentedDevice))

	err := s.repo.Create(ctx, "device_mismatch", userID, map[string]any{
		"issued_device":    issuedDevice,
		"presented_device": presentedDevice,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", "device_mismatch"),
			slog.Any("error", err))
	}
}

// LogTrustTransition records a trust-state change and the assessment that
// caused it.
func (s *AuditService) LogTrustTransition(ctx context.Context, userID, action string, riskScore float64, flags []string) {
	s.logger.InfoContext(ctx, "trust state transition",
		slog.String("user_id", userID),
		slog.String("action", action),
		slog.Float64("risk_score", riskScore),
		slog.Any("flags", flags))

	err := s.repo.Create(ctx, "trust_transition", userID, map[string]any{
		"action":     action,
		"risk_score": riskScore,
		"flags":      flags,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", "trust_transition"),
			slog.Any("error", err))
	}
}

// LogAdminAction records a manual intervention such as an unban.
func (s *AuditService) LogAdminAction(ctx context.Context, adminID, targetUserID, action string) {
	s.logger.InfoContext(ctx, "admin action",
		slog.String("admin_id", adminID),
		slog.String("target_user_id", targetUserID),
		slog.String("action", action))

	err := s.repo.Create(ctx, "admin_action", targetUserID, map[string]any{
		"admin_id": adminID,
		"action":   action,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist security event",
			slog.String("event_type", "admin_action"),
			slog.Any("error", err))
	}
}
