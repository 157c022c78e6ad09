package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/saqrlabs/trustcore/internal/events"
	"github.com/saqrlabs/trustcore/internal/models"
	"github.com/saqrlabs/trustcore/internal/services"
)

// MockSecurityEventRepository implements SecurityEventRepository for testing
type MockSecurityEventRepository struct {
	events []string
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, eventType, userID string, detail map[string]any) error {
	m.events = append(m.events, eventType)
	return nil
}

func (m *MockSecurityEventRepository) CountByType(ctx context.Context, eventType, userID string, since time.Time) (int, error) {
	count := 0
	for _, e := range m.events {
		if e == eventType {
			count++
		}
	}
	return count, nil
}

// MockTokenConsumer implements TokenConsumer for testing
type MockTokenConsumer struct {
	token *models.ClaimToken
}

func (m *MockTokenConsumer) GetByToken(ctx context.Context, token string) (*models.ClaimToken, error) {
	if m.token == nil || m.token.Token != token {
		return nil, models.ErrNotFound
	}
	return m.token, nil
}

func (m *MockTokenConsumer) ConsumeTx(ctx context.Context, tx pgx.Tx, token string, at time.Time) error {
	if m.token == nil || m.token.Token != token || m.token.Consumed {
		return models.ErrInvalidToken
	}
	m.token.Consumed = true
	m.token.ConsumedAt = &at
	return nil
}

// MockActivityWriter implements ActivityWriter for testing
type MockActivityWriter struct {
	records    []*models.ActivityRecord
	todayCount int
	stats      *models.RewardStats
}

func (m *MockActivityWriter) CreateTx(ctx context.Context, tx pgx.Tx, rec *models.ActivityRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *MockActivityWriter) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return m.todayCount, nil
}

func (m *MockActivityWriter) GetRewardStats(ctx context.Context, userID string, dayStart time.Time) (*models.RewardStats, error) {
	if m.stats != nil {
		return m.stats, nil
	}
	return &models.RewardStats{}, nil
}

// MockRewardLedger implements RewardLedger for testing
type MockRewardLedger struct {
	total   int64
	failErr error
}

func (m *MockRewardLedger) CreditTx(ctx context.Context, tx pgx.Tx, userID string, points int) (int64, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	m.total += int64(points)
	return m.total, nil
}

// MockTxRunner implements TxRunner for testing. It runs the function with a
// nil transaction and restores mock state on error, mimicking a rollback.
type MockTxRunner struct {
	tokens *MockTokenConsumer
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	var before *models.ClaimToken
	if m.tokens.token != nil {
		copied := *m.tokens.token
		before = &copied
	}
	if err := fn(nil); err != nil {
		m.tokens.token = before
		return err
	}
	return nil
}

func validTestToken() *models.ClaimToken {
	return &models.ClaimToken{
		Token:             "abc123",
		UserID:            "user-1",
		IssuedAt:          time.Now().Add(-time.Minute),
		ExpiresAt:         time.Now().Add(4 * time.Minute),
		DeviceFingerprint: "fingerprint-a",
		IPAddress:         "10.0.0.1",
	}
}

func testRedeemService(tokens *MockTokenConsumer, activity *MockActivityWriter, ledger *MockRewardLedger) *services.RedeemService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	audit := services.NewAuditService(&MockSecurityEventRepository{}, logger)
	config := services.RedeemConfig{
		MinWatchSeconds: 25,
		MaxWatchSeconds: 120,
		PointsPerView:   5,
		DailyClaimLimit: 50,
	}
	return services.NewRedeemService(tokens, activity, ledger, &MockTxRunner{tokens: tokens}, audit, events.NopPublisher{}, config, logger)
}

func TestRedeemCreditsValidView(t *testing.T) {
	tokens := &MockTokenConsumer{token: validTestToken()}
	activity := &MockActivityWriter{}
	ledger := &MockRewardLedger{}
	svc := testRedeemService(tokens, activity, ledger)

	result, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")

	assert.NoError(t, err)
	assert.Equal(t, 5, result.PointsAwarded)
	assert.Equal(t, int64(5), result.TotalPoints)
	assert.True(t, tokens.token.Consumed)
	assert.Len(t, activity.records, 1)
	assert.Equal(t, models.ActivityRewardedView, activity.records[0].ActivityType)
}

func TestRedeemRejectsUnknownToken(t *testing.T) {
	svc := testRedeemService(&MockTokenConsumer{}, &MockActivityWriter{}, &MockRewardLedger{})

	_, err := svc.Redeem(context.Background(), "missing", 30, "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestRedeemRejectsConsumedToken(t *testing.T) {
	token := validTestToken()
	token.Consumed = true
	svc := testRedeemService(&MockTokenConsumer{token: token}, &MockActivityWriter{}, &MockRewardLedger{})

	_, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestRedeemRejectsExpiredToken(t *testing.T) {
	token := validTestToken()
	token.ExpiresAt = time.Now().Add(-time.Second)
	svc := testRedeemService(&MockTokenConsumer{token: token}, &MockActivityWriter{}, &MockRewardLedger{})

	_, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestRedeemDurationBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		duration int
		wantErr  error
	}{
		{"below minimum", 24, models.ErrInsufficientDuration},
		{"at minimum", 25, nil},
		{"at maximum", 120, nil},
		{"above maximum", 121, models.ErrInvalidDuration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := &MockTokenConsumer{token: validTestToken()}
			svc := testRedeemService(tokens, &MockActivityWriter{}, &MockRewardLedger{})

			_, err := svc.Redeem(context.Background(), "abc123", tc.duration, "fingerprint-a", "10.0.0.1")

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.False(t, tokens.token.Consumed)
			} else {
				assert.NoError(t, err)
				assert.True(t, tokens.token.Consumed)
			}
		})
	}
}

func TestRedeemRejectsDeviceMismatch(t *testing.T) {
	tokens := &MockTokenConsumer{token: validTestToken()}
	svc := testRedeemService(tokens, &MockActivityWriter{}, &MockRewardLedger{})

	_, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-other", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrDeviceMismatch)
	assert.False(t, tokens.token.Consumed)
}

func TestRedeemRejectsAtDailyLimit(t *testing.T) {
	tokens := &MockTokenConsumer{token: validTestToken()}
	activity := &MockActivityWriter{todayCount: 50}
	svc := testRedeemService(tokens, activity, &MockRewardLedger{})

	_, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrDailyLimitReached)
	assert.False(t, tokens.token.Consumed)
}

func TestRedeemCreditFailureRollsBackConsumption(t *testing.T) {
	tokens := &MockTokenConsumer{token: validTestToken()}
	ledger := &MockRewardLedger{failErr: errors.New("ledger unavailable")}
	svc := testRedeemService(tokens, &MockActivityWriter{}, ledger)

	_, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")

	assert.ErrorIs(t, err, models.ErrCreditFailed)
	assert.False(t, tokens.token.Consumed, "token must stay redeemable after a failed credit")
}

func TestRedeemSecondAttemptFails(t *testing.T) {
	tokens := &MockTokenConsumer{token: validTestToken()}
	svc := testRedeemService(tokens, &MockActivityWriter{}, &MockRewardLedger{})

	_, err := svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")
	assert.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "abc123", 30, "fingerprint-a", "10.0.0.1")
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestGetStatsComputesRemaining(t *testing.T) {
	activity := &MockActivityWriter{stats: &models.RewardStats{
		TodayViews:  12,
		TodayPoints: 60,
		TotalViews:  400,
		TotalPoints: 2000,
	}}
	svc := testRedeemService(&MockTokenConsumer{}, activity, &MockRewardLedger{})

	stats, err := svc.GetStats(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Equal(t, 50, stats.DailyLimit)
	assert.Equal(t, 38, stats.TodayRemaining)
}
