package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/saqrlabs/trustcore/internal/events"
	"github.com/saqrlabs/trustcore/internal/models"
)

// TokenConsumer defines the token lookup and the conditional consume flip.
type TokenConsumer interface {
	GetByToken(ctx context.Context, token string) (*models.ClaimToken, error)
	ConsumeTx(ctx context.Context, tx pgx.Tx, token string, at time.Time) error
}

// ActivityWriter appends activity records and answers daily-ceiling counts.
type ActivityWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, rec *models.ActivityRecord) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	GetRewardStats(ctx context.Context, userID string, dayStart time.Time) (*models.RewardStats, error)
}

// RewardLedger is the credit boundary. The tx-scoped signature keeps the
// credit co-transactional with the token flip; an external implementation
// that cannot share the transaction must return an error to roll the flip
// back.
type RewardLedger interface {
	CreditTx(ctx context.Context, tx pgx.Tx, userID string, points int) (int64, error)
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// RedeemConfig holds redemption validation bounds.
type RedeemConfig struct {
	MinWatchSeconds int
	MaxWatchSeconds int
	PointsPerView   int
	DailyClaimLimit int
}

// CreditResult is the successful outcome of a redemption.
type CreditResult struct {
	PointsAwarded int   `json:"points_awarded"`
	TotalPoints   int64 `json:"total_points"`
}

// RedeemService validates and consumes a claim token exactly once, credits
// the reward, and records the activity as one transactional unit.
type RedeemService struct {
	tokens    TokenConsumer
	activity  ActivityWriter
	ledger    RewardLedger
	tx        TxRunner
	audit     *AuditService
	publisher events.Publisher
	config    RedeemConfig
	logger    *slog.Logger
}

// NewRedeemService creates a new RedeemService
func NewRedeemService(tokens TokenConsumer, activity ActivityWriter, ledger RewardLedger, tx TxRunner, audit *AuditService, publisher events.Publisher, config RedeemConfig, logger *slog.Logger) *RedeemService {
	return &RedeemService{
		tokens:    tokens,
		activity:  activity,
		ledger:    ledger,
		tx:        tx,
		audit:     audit,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// Redeem validates the token and, if every check passes, consumes it and
// credits the reward. Checks run in a fixed order and each failure carries a
// distinct reason; responses never say more than the minimal reason.
func (s *RedeemService) Redeem(ctx context.Context, token string, watchDuration int, deviceFingerprint, ipAddress string) (*CreditResult, error) {
	now := time.Now()

	ct, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.reject(ctx, "", models.ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if ct.Consumed {
		return nil, s.reject(ctx, ct.UserID, models.ErrInvalidToken)
	}

	if ct.Expired(now) {
		return nil, s.reject(ctx, ct.UserID, models.ErrTokenExpired)
	}

	if watchDuration < s.config.MinWatchSeconds {
		return nil, s.reject(ctx, ct.UserID, models.ErrInsufficientDuration)
	}
	if watchDuration > s.config.MaxWatchSeconds {
		return nil, s.reject(ctx, ct.UserID, models.ErrInvalidDuration)
	}

	if deviceFingerprint != ct.DeviceFingerprint {
		// Recorded as a standalone security event regardless of outcome.
		s.audit.LogDeviceMismatch(ctx, ct.UserID, ct.DeviceFingerprint, deviceFingerprint)
		s.publisher.Publish(events.SecurityEvent{
			Type:   events.TypeDeviceMismatch,
			UserID: ct.UserID,
		})
		return nil, s.reject(ctx, ct.UserID, models.ErrDeviceMismatch)
	}

	dayStart := now.UTC().Truncate(24 * time.Hour)
	todayCount, err := s.activity.CountSince(ctx, ct.UserID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count daily claims: %w", err)
	}
	if todayCount >= s.config.DailyClaimLimit {
		return nil, s.reject(ctx, ct.UserID, models.ErrDailyLimitReached)
	}

	// The flip, the activity record, and the credit commit or roll back
	// together. If the credit fails, the token stays unconsumed so a retry
	// remains possible.
	var total int64
	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := s.tokens.ConsumeTx(ctx, tx, token, now); err != nil {
			return err
		}

		rec := &models.ActivityRecord{
			ID:                uuid.New().String(),
			UserID:            ct.UserID,
			ActivityType:      models.ActivityRewardedView,
			WatchDuration:     watchDuration,
			PointsAwarded:     s.config.PointsPerView,
			DeviceFingerprint: deviceFingerprint,
			IPAddress:         ipAddress,
			OccurredAt:        now,
		}
		if err := s.activity.CreateTx(ctx, tx, rec); err != nil {
			return err
		}

		credited, err := s.ledger.CreditTx(ctx, tx, ct.UserID, s.config.PointsPerView)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrCreditFailed, err)
		}
		total = credited

		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			// Lost the race to a concurrent redemption of the same token.
			return nil, s.reject(ctx, ct.UserID, models.ErrInvalidToken)
		}
		if errors.Is(err, models.ErrCreditFailed) {
			s.logger.Error("reward credit failed, redemption rolled back",
				slog.String("user_id", ct.UserID),
				slog.Any("error", err))
			return nil, models.ErrCreditFailed
		}
		return nil, fmt.Errorf("redemption transaction failed: %w", err)
	}

	s.logger.Info("reward credited",
		slog.String("user_id", ct.UserID),
		slog.Int("points", s.config.PointsPerView),
		slog.Int("watch_duration", watchDuration))
	s.publisher.Publish(events.SecurityEvent{
		Type:   events.TypeRewardCredited,
		UserID: ct.UserID,
		Detail: map[string]string{
			"points": fmt.Sprintf("%d", s.config.PointsPerView),
		},
	})

	return &CreditResult{
		PointsAwarded: s.config.PointsPerView,
		TotalPoints:   total,
	}, nil
}

// GetStats returns today's and all-time credited view counts for a user.
func (s *RedeemService) GetStats(ctx context.Context, userID string) (*models.RewardStats, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	stats, err := s.activity.GetRewardStats(ctx, userID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to load reward stats: %w", err)
	}

	stats.DailyLimit = s.config.DailyClaimLimit
	stats.TodayRemaining = s.config.DailyClaimLimit - stats.TodayViews
	if stats.TodayRemaining < 0 {
		stats.TodayRemaining = 0
	}

	return stats, nil
}

// reject publishes a redemption failure event and returns the reason error.
func (s *RedeemService) reject(ctx context.Context, userID string, reason error) error {
	s.logger.Info("redemption rejected",
		slog.String("user_id", userID),
		slog.String("reason", models.RedemptionReason(reason)))
	s.publisher.Publish(events.SecurityEvent{
		Type:   events.TypeRedemptionFailed,
		UserID: userID,
		Detail: map[string]string{
			"reason": models.RedemptionReason(reason),
		},
	})
	return reason
}
