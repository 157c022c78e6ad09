package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saqrlabs/trustcore/internal/auth"
	"github.com/saqrlabs/trustcore/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest("POST", "/rewards/complete-ad-view", nil)
	claims := &models.TokenClaims{UserID: userID, Type: "access"}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// TestRateLimitByUserID_EnforcesRewardBudget verifies the per-user reward budget
func TestRateLimitByUserID_EnforcesRewardBudget(t *testing.T) {
	config := UserRateLimitConfig{RewardOperationsPerMinute: 30}
	handler := RateLimitByUserID(config, "reward")(okHandler())

	for i := 0; i < 30; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestAs("user-reward-test"))
		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestAs("user-reward-test"))
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d after budget exhausted, got %d", http.StatusTooManyRequests, recorder.Code)
	}
}

// TestRateLimitByUserID_IsolatesUserBuckets verifies separate rate limits per user
func TestRateLimitByUserID_IsolatesUserBuckets(t *testing.T) {
	config := UserRateLimitConfig{RewardOperationsPerMinute: 5}
	handler := RateLimitByUserID(config, "reward")(okHandler())

	// User A exhausts its budget
	for i := 0; i < 5; i++ {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, requestAs("user-a-isolation"))
		if recorder.Code != http.StatusOK {
			t.Errorf("user A request %d failed", i+1)
		}
	}

	// User B still has an independent bucket
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestAs("user-b-isolation"))
	if recorder.Code != http.StatusOK {
		t.Errorf("user B should have independent rate limit, got status %d", recorder.Code)
	}
}

// TestRateLimitByUserID_FallsBackToIPWithoutClaims verifies IP keying when no user is in context
func TestRateLimitByUserID_FallsBackToIPWithoutClaims(t *testing.T) {
	config := UserRateLimitConfig{ReadOperationsPerMinute: 100}
	handler := RateLimitByUserID(config, "read")(okHandler())

	req := httptest.NewRequest("GET", "/rewards/stats", nil)
	req.RemoteAddr = "192.168.1.1:8080"
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", recorder.Code)
	}
}

// TestRateLimitByUserID_Returns429JSON verifies the limit response format
func TestRateLimitByUserID_Returns429JSON(t *testing.T) {
	config := UserRateLimitConfig{AdminOperationsPerMinute: 1}
	handler := RateLimitByUserID(config, "admin")(okHandler())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestAs("user-429-test"))
	if recorder.Code != http.StatusOK {
		t.Errorf("first request failed with status %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, requestAs("user-429-test"))

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", recorder.Code)
	}
	if contentType := recorder.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}
	if body := recorder.Body.String(); body != `{"error":"Rate limit exceeded"}` {
		t.Errorf("unexpected response body: %s", body)
	}
}

// TestRateLimitByIP_EnforcesAuthBudget verifies the IP limit on the auth surface
func TestRateLimitByIP_EnforcesAuthBudget(t *testing.T) {
	handler := RateLimitByIP(DefaultAuthRateLimit())(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.1.2.3:9000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.1.2.3:9000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after auth budget exhausted, got %d", recorder.Code)
	}
}
