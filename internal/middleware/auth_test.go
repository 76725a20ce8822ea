package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authHandler(token string) http.Handler {
	return BearerAuth(token)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestBearerAuth_AllowsValidToken(t *testing.T) {
	handler := authHandler("secret")

	req := httptest.NewRequest("GET", "/api/v1/recall", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBearerAuth_RejectsBadToken(t *testing.T) {
	handler := authHandler("secret")

	for _, header := range []string{"", "Bearer wrong", "secret", "Basic secret"} {
		req := httptest.NewRequest("GET", "/api/v1/recall", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestBearerAuth_EmptyTokenDisablesCheck(t *testing.T) {
	handler := authHandler("")

	req := httptest.NewRequest("GET", "/api/v1/recall", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
