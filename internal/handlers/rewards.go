package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/saqrlabs/trustcore/internal/auth"
	"github.com/saqrlabs/trustcore/internal/models"
	"github.com/saqrlabs/trustcore/internal/services"
	pkghttp "github.com/saqrlabs/trustcore/pkg/http"
	pkglogger "github.com/saqrlabs/trustcore/pkg/logger"
)

// TokenIssuer defines the claim-token issuance operation
type TokenIssuer interface {
	Issue(ctx context.Context, userID, deviceFingerprint, ipAddress string) (*models.ClaimToken, error)
}

// Redeemer defines the redemption and stats operations
type Redeemer interface {
	Redeem(ctx context.Context, token string, watchDuration int, deviceFingerprint, ipAddress string) (*services.CreditResult, error)
	GetStats(ctx context.Context, userID string) (*models.RewardStats, error)
}

// RewardsHandler handles the rewarded ad view lifecycle: issue a claim token
// before the view, redeem it after.
type RewardsHandler struct {
	issuer      TokenIssuer
	redeemer    Redeemer
	ipConfig    *pkghttp.IPConfig
	auditLogger *pkglogger.AuditLogger
}

// NewRewardsHandler creates a new RewardsHandler
func NewRewardsHandler(issuer TokenIssuer, redeemer Redeemer, ipConfig *pkghttp.IPConfig, auditLogger *pkglogger.AuditLogger) *RewardsHandler {
	return &RewardsHandler{
		issuer:      issuer,
		redeemer:    redeemer,
		ipConfig:    ipConfig,
		auditLogger: auditLogger,
	}
}

// ValidateAdViewResponse carries the issued claim token
type ValidateAdViewResponse struct {
	ViewToken string `json:"view_token"`
	ExpiresAt string `json:"expires_at"`
}

// CompleteAdViewRequest represents the request body for redemption
type CompleteAdViewRequest struct {
	ViewToken     string `json:"view_token" validate:"required,min=32"`
	WatchDuration int    `json:"watch_duration" validate:"required,gte=1"`
}

// ValidateAdView issues a single-use claim token bound to the caller's device
func (h *RewardsHandler) ValidateAdView(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	fingerprint, ipAddress := deviceFingerprint(r, h.ipConfig)

	token, err := h.issuer.Issue(r.Context(), claims.UserID, fingerprint, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountBanned):
			pkghttp.WriteForbidden(w, "Account is banned")
		case errors.Is(err, models.ErrAccountSuspended):
			pkghttp.WriteForbidden(w, "Account is temporarily suspended")
		case errors.Is(err, models.ErrRateLimitExceeded):
			retryAfter, _ := models.RetryAfter(err)
			pkghttp.WriteRateLimited(w, retryAfter, "Too many token requests. Please slow down.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, ValidateAdViewResponse{
		ViewToken: token.Token,
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
	})
}

// CompleteAdView redeems a claim token and credits the reward
func (h *RewardsHandler) CompleteAdView(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CompleteAdViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	fingerprint, ipAddress := deviceFingerprint(r, h.ipConfig)

	result, err := h.redeemer.Redeem(r.Context(), req.ViewToken, req.WatchDuration, fingerprint, ipAddress)
	if err != nil {
		reason := models.RedemptionReason(err)
		h.auditLogger.LogRedemption(claims.UserID, ipAddress, false, reason)

		switch {
		case errors.Is(err, models.ErrInvalidToken),
			errors.Is(err, models.ErrTokenExpired),
			errors.Is(err, models.ErrInsufficientDuration),
			errors.Is(err, models.ErrInvalidDuration),
			errors.Is(err, models.ErrDeviceMismatch):
			pkghttp.WriteError(w, http.StatusBadRequest, reason, "Ad view could not be verified")
		case errors.Is(err, models.ErrDailyLimitReached):
			pkghttp.WriteError(w, http.StatusTooManyRequests, reason, "Daily reward limit reached")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.auditLogger.LogRedemption(claims.UserID, ipAddress, true, "")
	writeJSON(w, http.StatusOK, result)
}

// Stats returns the caller's credited view counts
func (h *RewardsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	stats, err := h.redeemer.GetStats(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
