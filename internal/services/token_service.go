package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saqrlabs/trustcore/internal/models"
)

// ClaimTokenRepository defines the token store operations the issuer needs.
type ClaimTokenRepository interface {
	Create(ctx context.Context, token *models.ClaimToken) error
	CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// TrustStateReader exposes the account standing check the issuer gates on.
type TrustStateReader interface {
	GetState(ctx context.Context, userID string) (*models.TrustState, error)
	LiftSuspension(ctx context.Context, userID string) error
}

// TokenIssuerConfig holds issuance limits.
type TokenIssuerConfig struct {
	TokenTTL           time.Duration
	MaxTokensPerMinute int
}

// TokenIssuerService issues short-lived, single-use claim tokens bound to
// the requesting user, device, and network origin.
type TokenIssuerService struct {
	repo   ClaimTokenRepository
	trust  TrustStateReader
	config TokenIssuerConfig
	logger *slog.Logger
}

// NewTokenIssuerService creates a new TokenIssuerService
func NewTokenIssuerService(repo ClaimTokenRepository, trust TrustStateReader, config TokenIssuerConfig, logger *slog.Logger) *TokenIssuerService {
	return &TokenIssuerService{
		repo:   repo,
		trust:  trust,
		config: config,
		logger: logger,
	}
}

// Issue mints a claim token for the user. Banned accounts and accounts still
// inside a suspension window are rejected; an elapsed suspension is lifted
// back to active first. Issuance is throttled against the token store's own
// history, never a client-supplied counter.
func (s *TokenIssuerService) Issue(ctx context.Context, userID, deviceFingerprint, ipAddress string) (*models.ClaimToken, error) {
	state, err := s.trust.GetState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust state: %w", err)
	}

	now := time.Now()

	switch state.Status {
	case models.TrustBanned:
		s.logger.Warn("token issuance blocked for banned account", slog.String("user_id", userID))
		return nil, models.ErrAccountBanned
	case models.TrustSuspended:
		if !state.SuspensionElapsed(now) {
			s.logger.Info("token issuance blocked for suspended account",
				slog.String("user_id", userID),
				slog.Time("suspension_until", *state.SuspensionUntil))
			return nil, models.ErrAccountSuspended
		}
		if err := s.trust.LiftSuspension(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to lift suspension: %w", err)
		}
	}

	issued, err := s.repo.CountIssuedSince(ctx, userID, now.Add(-time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to count issued tokens: %w", err)
	}
	if issued >= s.config.MaxTokensPerMinute {
		s.logger.Warn("token issuance rate limited",
			slog.String("user_id", userID),
			slog.Int("issued_last_minute", issued))
		return nil, &models.RetryAfterError{
			Err:               models.ErrRateLimitExceeded,
			RetryAfterSeconds: int(time.Minute.Seconds()),
		}
	}

	tokenString, err := generateClaimToken(userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &models.ClaimToken{
		Token:             tokenString,
		UserID:            userID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.config.TokenTTL),
		DeviceFingerprint: deviceFingerprint,
		IPAddress:         ipAddress,
	}

	if err := s.repo.Create(ctx, token); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// 16 random bytes make a collision practically impossible;
			// surface it rather than retry silently.
			return nil, fmt.Errorf("token collision: %w", err)
		}
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	s.logger.Info("claim token issued",
		slog.String("user_id", userID),
		slog.Time("expires_at", token.ExpiresAt))

	return token, nil
}

// generateClaimToken derives an unguessable opaque token from the user id,
// the current time, and 16 random bytes.
func generateClaimToken(userID string, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s%d%x", userID, now.UnixNano(), nonce)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
