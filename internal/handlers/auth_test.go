package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saqrlabs/trustcore/internal/handlers"
	"github.com/saqrlabs/trustcore/internal/models"
	"github.com/saqrlabs/trustcore/internal/services"
	pkghttp "github.com/saqrlabs/trustcore/pkg/http"
)

type stubAuthService struct {
	loginErr error
}

func (s *stubAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &services.AuthResponse{AccessToken: "token"}, nil
}

func (s *stubAuthService) Register(ctx context.Context, email, password, name string) (*services.UserResponse, error) {
	return nil, nil
}

func postLogin(t *testing.T, handler *handlers.AuthHandler) *httptest.ResponseRecorder {
	t.Helper()
	body := bytes.NewBufferString(`{"email":"test@example.com","password":"SomePassword1!"}`)
	req := httptest.NewRequest("POST", "/auth/login", body)
	w := httptest.NewRecorder()
	handler.Login(w, req)
	return w
}

func TestLoginLockoutAnswersWithRetryAfter(t *testing.T) {
	svc := &stubAuthService{loginErr: &models.RetryAfterError{
		Err:               models.ErrAccountLocked,
		RetryAfterSeconds: 893,
	}}
	handler := handlers.NewAuthHandler(svc, nil)

	w := postLogin(t, handler)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "893", w.Header().Get("Retry-After"))

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
}

func TestLoginCredentialFailureStaysGeneric(t *testing.T) {
	svc := &stubAuthService{loginErr: models.ErrUnauthorized}
	handler := handlers.NewAuthHandler(svc, nil)

	w := postLogin(t, handler)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}
