package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/r-osmani/bookpay/libs/auth"
)

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	claims := auth.Claims{
		Sub:        "user-1",
		BusinessID: "biz-1",
		Role:       "owner",
		Iat:        time.Now().Unix(),
		Exp:        time.Now().Add(1 * time.Hour).Unix(),
	}
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := RequireAuth(secret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := ClaimsFromContext(r.Context())
		if got == nil || got.Sub != claims.Sub {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	h := RequireAuth("test-secret", nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	missing := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, missing)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rw.Code)
	}

	garbage := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	garbage.Header.Set("Authorization", "Bearer not.a.jwt")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, garbage)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rw.Code)
	}

	expired := auth.Claims{
		Sub: "user-1",
		Iat: time.Now().Add(-2 * time.Hour).Unix(),
		Exp: time.Now().Add(-1 * time.Hour).Unix(),
	}
	token, err := auth.SignHS256(expired, "test-secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: expected 401, got %d", rw.Code)
	}
}
