package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.RequestsPerSecond != 10 {
		t.Errorf("RequestsPerSecond = %v, want 10", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 20 {
		t.Errorf("Burst = %d, want 20", cfg.Burst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestRateLimiterStore_GetLimiter(t *testing.T) {
	store := &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		config: RateLimiterConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}

	limiter1 := store.getLimiter("key1")
	if limiter1 == nil {
		t.Error("expected limiter to be created")
	}

	limiter2 := store.getLimiter("key1")
	if limiter1 != limiter2 {
		t.Error("expected same limiter to be returned")
	}

	limiter3 := store.getLimiter("key2")
	if limiter1 == limiter3 {
		t.Error("expected different limiter for different key")
	}
}

func newLimitedHandler(t *testing.T, rps float64, burst int) echo.HandlerFunc {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })

	mw := RateLimiter(RateLimiterConfig{
		RequestsPerSecond: rps,
		Burst:             burst,
		CleanupInterval:   time.Hour,
	}, stop)

	return mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})
}

func TestRateLimiter_AllowsRequests(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(t, 100, 100)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	if err := handler(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiter_BlocksExcessiveRequests(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(t, 1, 1)

	for i := 0; i < 5; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), httptest.NewRecorder())

		err := handler(c)
		if i == 0 {
			if err != nil {
				t.Errorf("first request should succeed, got error: %v", err)
			}
			continue
		}
		if err == nil {
			continue
		}
		he, ok := err.(*echo.HTTPError)
		if !ok {
			t.Errorf("expected echo.HTTPError, got %T", err)
			continue
		}
		if he.Code != http.StatusTooManyRequests {
			t.Errorf("request %d status = %d, want 429", i+1, he.Code)
		}
	}
}

func TestRateLimiter_UserHeaderDoesNotResetBucket(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(t, 1, 1)

	send := func(user, addr string) error {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = addr
		req.Header.Set("x-user-id", user)
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := send("alice", "10.0.0.1:1234"); err != nil {
		t.Fatalf("first request should succeed, got %v", err)
	}

	err := send("bob", "10.0.0.1:1234")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for a new user id from the same address, got %v", err)
	}

	if err := send("bob", "10.0.0.2:1234"); err != nil {
		t.Errorf("another address should have its own bucket, got %v", err)
	}
}
