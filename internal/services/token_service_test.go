package services_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saqrlabs/trustcore/internal/models"
	"github.com/saqrlabs/trustcore/internal/services"
)

// MockClaimTokenRepository implements ClaimTokenRepository for testing
type MockClaimTokenRepository struct {
	tokens []*models.ClaimToken
}

func (m *MockClaimTokenRepository) Create(ctx context.Context, token *models.ClaimToken) error {
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *MockClaimTokenRepository) CountIssuedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	count := 0
	for _, t := range m.tokens {
		if t.UserID == userID && !t.IssuedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// MockTrustStateReader implements TrustStateReader for testing
type MockTrustStateReader struct {
	state  *models.TrustState
	lifted []string
}

func (m *MockTrustStateReader) GetState(ctx context.Context, userID string) (*models.TrustState, error) {
	if m.state != nil {
		return m.state, nil
	}
	return &models.TrustState{UserID: userID, Status: models.TrustActive}, nil
}

func (m *MockTrustStateReader) LiftSuspension(ctx context.Context, userID string) error {
	m.lifted = append(m.lifted, userID)
	return nil
}

func testTokenIssuer(repo *MockClaimTokenRepository, trust *MockTrustStateReader) *services.TokenIssuerService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config := services.TokenIssuerConfig{
		TokenTTL:           5 * time.Minute,
		MaxTokensPerMinute: 3,
	}
	return services.NewTokenIssuerService(repo, trust, config, logger)
}

func TestTokenIssuerIssuesForActiveAccount(t *testing.T) {
	repo := &MockClaimTokenRepository{}
	issuer := testTokenIssuer(repo, &MockTrustStateReader{})

	token, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")

	assert.NoError(t, err)
	assert.Len(t, token.Token, 64)
	assert.Equal(t, "user-1", token.UserID)
	assert.Equal(t, "fingerprint-a", token.DeviceFingerprint)
	assert.False(t, token.Consumed)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), token.ExpiresAt, 2*time.Second)
}

func TestTokenIssuerRejectsBannedAccount(t *testing.T) {
	trust := &MockTrustStateReader{
		state: &models.TrustState{UserID: "user-1", Status: models.TrustBanned},
	}
	issuer := testTokenIssuer(&MockClaimTokenRepository{}, trust)

	_, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrAccountBanned)
}

func TestTokenIssuerRejectsActiveSuspension(t *testing.T) {
	until := time.Now().Add(2 * time.Hour)
	trust := &MockTrustStateReader{
		state: &models.TrustState{UserID: "user-1", Status: models.TrustSuspended, SuspensionUntil: &until},
	}
	issuer := testTokenIssuer(&MockClaimTokenRepository{}, trust)

	_, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrAccountSuspended)
	assert.Empty(t, trust.lifted)
}

func TestTokenIssuerLiftsElapsedSuspension(t *testing.T) {
	until := time.Now().Add(-1 * time.Hour)
	trust := &MockTrustStateReader{
		state: &models.TrustState{UserID: "user-1", Status: models.TrustSuspended, SuspensionUntil: &until},
	}
	repo := &MockClaimTokenRepository{}
	issuer := testTokenIssuer(repo, trust)

	token, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")

	assert.NoError(t, err)
	assert.NotNil(t, token)
	assert.Equal(t, []string{"user-1"}, trust.lifted)
}

func TestTokenIssuerThrottlesPerMinute(t *testing.T) {
	repo := &MockClaimTokenRepository{}
	issuer := testTokenIssuer(repo, &MockTrustStateReader{})

	for i := 0; i < 3; i++ {
		_, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")
		assert.NoError(t, err)
	}

	_, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)

	retryAfter, ok := models.RetryAfter(err)
	assert.True(t, ok)
	assert.Equal(t, 60, retryAfter)
}

func TestTokenIssuerThrottleIsPerUser(t *testing.T) {
	repo := &MockClaimTokenRepository{}
	issuer := testTokenIssuer(repo, &MockTrustStateReader{})

	for i := 0; i < 3; i++ {
		_, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")
		assert.NoError(t, err)
	}

	_, err := issuer.Issue(context.Background(), "user-2", "fingerprint-b", "10.0.0.2")
	assert.NoError(t, err)
}

func TestTokenIssuerTokensAreUnique(t *testing.T) {
	repo := &MockClaimTokenRepository{}
	issuer := testTokenIssuer(repo, &MockTrustStateReader{})

	a, err := issuer.Issue(context.Background(), "user-1", "fingerprint-a", "10.0.0.1")
	assert.NoError(t, err)
	b, err := issuer.Issue(context.Background(), "user-2", "fingerprint-a", "10.0.0.1")
	assert.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
}
