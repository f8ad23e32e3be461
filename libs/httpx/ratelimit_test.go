package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	h := NewRateLimiter(2, time.Minute).Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}

	if do("10.0.0.1") != http.StatusOK || do("10.0.0.1") != http.StatusOK {
		t.Fatal("requests under the limit must pass")
	}
	if do("10.0.0.1") != http.StatusTooManyRequests {
		t.Fatal("third request in the window must be limited")
	}
	if do("10.0.0.2") != http.StatusOK {
		t.Fatal("limits are per client, another ip must pass")
	}
}
