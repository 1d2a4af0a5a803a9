package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xhashpass/authworker/internal/cache"
)

// countingLimiter allows burst requests per ip and never refills.
type countingLimiter struct {
	mu   sync.Mutex
	seen map[string]int
}

func newLimiter(*testing.T) *countingLimiter {
	return &countingLimiter{seen: make(map[string]int)}
}

func (l *countingLimiter) CheckIPRateLimit(_ context.Context, ip string, _, burst int) *cache.RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seen[ip]++
	if l.seen[ip] > burst {
		return &cache.RateLimitResult{Allowed: false, Limit: burst, RetryAfter: 2 * time.Second}
	}
	return &cache.RateLimitResult{Allowed: true, Limit: burst, Remaining: int64(burst - l.seen[ip])}
}

func TestRateLimitIP(t *testing.T) {
	t.Parallel()

	handler := RateLimitIP(RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: newLimiter(t),
		Enabled: true,
		RPS:     1,
		Burst:   2,
	})(okHandler())

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("203.0.113.7:5000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := send("203.0.113.7:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != CodeRateLimited {
		t.Errorf("code = %s, want %s", body.Error.Code, CodeRateLimited)
	}

	if rec := send("198.51.100.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", rec.Code)
	}
}

func TestRateLimitIP_Disabled(t *testing.T) {
	t.Parallel()

	handler := RateLimitIP(RateLimitConfig{
		Logger:  discardLogger(),
		Limiter: newLimiter(t),
		Enabled: false,
		RPS:     1,
		Burst:   1,
	})(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
