package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saqrlabs/trustcore/internal/auth"
	"github.com/saqrlabs/trustcore/internal/models"
	pkgauth "github.com/saqrlabs/trustcore/pkg/auth"
	pkglogger "github.com/saqrlabs/trustcore/pkg/logger"
)

// UserRepository defines the user store operations authentication needs.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// AuthService handles authentication business logic. Every login attempt
// passes through the login guard first and is recorded with it afterwards,
// success or failure.
type AuthService struct {
	repo        UserRepository
	guard       *LoginGuardService
	trust       TrustStateReader
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, guard *LoginGuardService, trust TrustStateReader, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		guard:       guard,
		trust:       trust,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	User        *UserResponse `json:"user"`
}

// Login authenticates a user and returns an access token. The guard decision
// comes first: a locked identity is rejected before credentials are even
// looked at, and the attempt itself is not added to the ledger.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	email = models.NormalizeIdentity(email)
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	decision, err := s.guard.CheckLoginAllowed(ctx, email, ipAddress)
	if err != nil {
		s.logger.Error("failed to evaluate login guard", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !decision.Allowed {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			IPAddress:     ipAddress,
			FailureReason: "account_locked",
			Success:       false,
		})
		return nil, &models.RetryAfterError{
			Err:               models.ErrAccountLocked,
			RetryAfterSeconds: decision.RetryAfterSeconds,
		}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Record the miss against the identity so credential stuffing
			// against unknown emails still trips the lockout.
			s.recordAttempt(ctx, email, false, ipAddress, userAgent)
			s.logger.Info("login failed: invalid credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordAttempt(ctx, email, false, ipAddress, userAgent)
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	state, err := s.trust.GetState(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to load trust state", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if state.Status == models.TrustBanned {
		s.recordAttempt(ctx, email, false, ipAddress, userAgent)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_banned",
			Success:       false,
		})
		return nil, models.ErrAccountBanned
	}

	s.recordAttempt(ctx, email, true, ipAddress, userAgent)

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken: accessToken,
		User:        toUserResponse(user),
	}, nil
}

// Register creates a new account with a hashed password.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*UserResponse, error) {
	email = models.NormalizeIdentity(email)

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         "user",
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	return toUserResponse(created), nil
}

// recordAttempt appends to the attempt ledger; a recording failure is logged
// but never turns a decided login outcome into an error.
func (s *AuthService) recordAttempt(ctx context.Context, email string, succeeded bool, ipAddress, userAgent string) {
	if err := s.guard.RecordAttempt(ctx, email, succeeded, ipAddress, userAgent); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
