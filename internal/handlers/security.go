package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/saqrlabs/trustcore/internal/auth"
	"github.com/saqrlabs/trustcore/internal/models"
	pkghttp "github.com/saqrlabs/trustcore/pkg/http"
)

const defaultSuspiciousLimit = 100

// TrustServiceInterface defines the fraud analysis and account standing
// operations exposed to admins
type TrustServiceInterface interface {
	Analyze(ctx context.Context, userID string) (*models.RiskAssessment, error)
	BatchAnalyze(ctx context.Context) (*models.BatchAnalysisResult, error)
	ListSuspicious(ctx context.Context, limit int) ([]*models.SuspiciousUser, error)
	Unban(ctx context.Context, adminID, userID string) error
	GetState(ctx context.Context, userID string) (*models.TrustState, error)
	AssessmentHistory(ctx context.Context, userID string, limit int) ([]*models.RiskAssessment, error)
}

// SecurityHandler handles admin-facing fraud analysis and moderation requests
type SecurityHandler struct {
	trust TrustServiceInterface
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(trust TrustServiceInterface) *SecurityHandler {
	return &SecurityHandler{trust: trust}
}

// AnalyzeUser runs a fresh fraud assessment for one user
func (h *SecurityHandler) AnalyzeUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	assessment, err := h.trust.Analyze(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// BatchAnalyze re-scores all non-banned accounts
func (h *SecurityHandler) BatchAnalyze(w http.ResponseWriter, r *http.Request) {
	result, err := h.trust.BatchAnalyze(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SuspiciousUsers lists accounts needing review
func (h *SecurityHandler) SuspiciousUsers(w http.ResponseWriter, r *http.Request) {
	limit := defaultSuspiciousLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			pkghttp.WriteBadRequest(w, "Limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	users, err := h.trust.ListSuspicious(r.Context(), limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// UnbanUser restores a banned account to active standing
func (h *SecurityHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	if err := h.trust.Unban(r.Context(), claims.UserID, userID); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Account is not banned")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unbanned"})
}

// TrustState returns one user's current standing and recent assessments
func (h *SecurityHandler) TrustState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	state, err := h.trust.GetState(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	history, err := h.trust.AssessmentHistory(r.Context(), userID, 10)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":       state,
		"assessments": history,
	})
}
