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

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	attempts []*models.LoginAttempt
	lockouts map[string]*models.Lockout
}

func NewMockLoginAttemptRepository() *MockLoginAttemptRepository {
	return &MockLoginAttemptRepository{
		lockouts: make(map[string]*models.Lockout),
	}
}

func (m *MockLoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *MockLoginAttemptRepository) CountFailedAttempts(ctx context.Context, email string, since time.Time) (int, error) {
	count := 0
	for _, a := range m.attempts {
		if a.Email == email && !a.Succeeded && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockLoginAttemptRepository) DeleteFailedAttempts(ctx context.Context, email string) error {
	kept := m.attempts[:0]
	for _, a := range m.attempts {
		if a.Email != email || a.Succeeded {
			kept = append(kept, a)
		}
	}
	m.attempts = kept
	return nil
}

func (m *MockLoginAttemptRepository) GetLockout(ctx context.Context, email string) (*models.Lockout, error) {
	return m.lockouts[email], nil
}

func (m *MockLoginAttemptRepository) UpsertLockout(ctx context.Context, email string, lockedUntil time.Time, reason string) error {
	m.lockouts[email] = &models.Lockout{Email: email, LockedUntil: &lockedUntil, Reason: &reason}
	return nil
}

func (m *MockLoginAttemptRepository) ClearLockout(ctx context.Context, email string) error {
	delete(m.lockouts, email)
	return nil
}

func testLoginGuard(repo *MockLoginAttemptRepository) *services.LoginGuardService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config := services.LoginGuardConfig{
		MaxAttempts:     5,
		AttemptWindow:   30 * time.Minute,
		LockoutDuration: 15 * time.Minute,
	}
	return services.NewLoginGuardService(repo, config, events.NopPublisher{}, logger)
}

func failTimes(t *testing.T, guard *services.LoginGuardService, email string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := guard.RecordAttempt(context.Background(), email, false, "192.168.1.1", "Mozilla/5.0")
		assert.NoError(t, err)
	}
}

func TestLoginGuardAllowsInitialAttempt(t *testing.T) {
	guard := testLoginGuard(NewMockLoginAttemptRepository())

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")

	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 5, decision.RemainingAttempts)
}

func TestLoginGuardAllowsBelowThreshold(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	guard := testLoginGuard(repo)

	failTimes(t, guard, "test@example.com", 4)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")

	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.RemainingAttempts)
}

func TestLoginGuardLocksAtThreshold(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	guard := testLoginGuard(repo)

	failTimes(t, guard, "test@example.com", 5)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")

	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfterSeconds, 0)
	assert.NotNil(t, repo.lockouts["test@example.com"])
}

func TestLoginGuardActiveLockoutRejectsWithoutCounting(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	until := time.Now().Add(10 * time.Minute)
	repo.lockouts["test@example.com"] = &models.Lockout{
		Email:       "test@example.com",
		LockedUntil: &until,
	}
	guard := testLoginGuard(repo)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")

	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, decision.RetryAfterSeconds, int((10 * time.Minute).Seconds()))
}

func TestLoginGuardExpiredLockoutAllowsAgain(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	expired := time.Now().Add(-1 * time.Minute)
	repo.lockouts["test@example.com"] = &models.Lockout{
		Email:       "test@example.com",
		LockedUntil: &expired,
	}
	guard := testLoginGuard(repo)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")

	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestLoginGuardLockoutConsumesStrikes(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	guard := testLoginGuard(repo)

	failTimes(t, guard, "test@example.com", 5)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")
	assert.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Writing the lockout spends the failures; the window starts over.
	count, err := repo.CountFailedAttempts(context.Background(), "test@example.com", time.Now().Add(-30*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	// Simulate the lockout having been served: the next attempt starts a
	// fresh window instead of re-locking on the stale failures.
	expired := time.Now().Add(-1 * time.Minute)
	repo.lockouts["test@example.com"] = &models.Lockout{
		Email:       "test@example.com",
		LockedUntil: &expired,
	}

	decision, err = guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 5, decision.RemainingAttempts)
}

func TestLoginGuardSuccessResetsFailuresAndLockout(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	guard := testLoginGuard(repo)

	failTimes(t, guard, "test@example.com", 4)

	err := guard.RecordAttempt(context.Background(), "test@example.com", true, "192.168.1.1", "Mozilla/5.0")
	assert.NoError(t, err)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 5, decision.RemainingAttempts)
	assert.Nil(t, repo.lockouts["test@example.com"])
}

func TestLoginGuardNormalizesIdentity(t *testing.T) {
	repo := NewMockLoginAttemptRepository()
	guard := testLoginGuard(repo)

	failTimes(t, guard, "  Test@Example.COM ", 5)

	decision, err := guard.CheckLoginAllowed(context.Background(), "test@example.com", "192.168.1.1")

	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
}
