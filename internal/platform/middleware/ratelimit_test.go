package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

func serve(h echo.HandlerFunc, e *echo.Echo, ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinBurst(t *testing.T) {
	e := echo.New()
	h := RateLimit(PerSecond(10, 5))(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := serve(h, e, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "5" {
			t.Errorf("request %d: unexpected X-RateLimit-Limit %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(PerMinute(2))(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := serve(h, e, "10.0.0.2"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := serve(h, e, "10.0.0.2")
	if apperr.KindOf(err) != apperr.KindRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_SeparateIPs(t *testing.T) {
	e := echo.New()
	h := RateLimit(PerMinute(1))(okHandler)

	if _, err := serve(h, e, "10.0.0.3"); err != nil {
		t.Fatalf("first ip: %v", err)
	}
	if _, err := serve(h, e, "10.0.0.4"); err != nil {
		t.Fatalf("second ip should have its own bucket: %v", err)
	}
	if _, err := serve(h, e, "10.0.0.3"); apperr.KindOf(err) != apperr.KindRateLimit {
		t.Fatalf("expected first ip to be limited, got %v", err)
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{Limit: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()
	store.now = func() time.Time { return now }

	store.get("a")
	now = now.Add(2 * time.Minute)
	store.get("b")

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.visitors["a"]; ok {
		t.Error("expected idle visitor to be evicted")
	}
	if _, ok := store.visitors["b"]; !ok {
		t.Error("expected active visitor to remain")
	}
}
