package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/screwyprof/airdrop/pkg/httpkit"
	"github.com/screwyprof/airdrop/web/handler"
)

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("it allows the burst and then reports the wait", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Minute), 2, handler.WithLimiterClock(clk))

		// Act
		first, _ := rl.AllowWithRetry("alice")
		second, _ := rl.AllowWithRetry("alice")
		third, retryAfter := rl.AllowWithRetry("alice")

		// Assert
		assert.True(t, first)
		assert.True(t, second)
		assert.False(t, third)
		assert.Equal(t, time.Minute, retryAfter)
	})

	t.Run("it refills over time", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Minute), 1, handler.WithLimiterClock(clk))
		allowed, _ := rl.AllowWithRetry("alice")
		require.True(t, allowed)

		// Act
		clk.Advance(time.Minute)
		allowed, _ = rl.AllowWithRetry("alice")

		// Assert
		assert.True(t, allowed)
	})

	t.Run("it keeps callers independent", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Hour), 1, handler.WithLimiterClock(clk))
		allowed, _ := rl.AllowWithRetry("alice")
		require.True(t, allowed)

		// Act
		allowed, _ = rl.AllowWithRetry("bob")

		// Assert
		assert.True(t, allowed)
		assert.Equal(t, 2, rl.Len())
	})

	t.Run("it forgets idle callers", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Minute), 1,
			handler.WithLimiterClock(clk), handler.WithIdleTimeout(10*time.Minute))
		rl.AllowWithRetry("alice")
		rl.AllowWithRetry("bob")

		// Act
		clk.Advance(11 * time.Minute)
		rl.AllowWithRetry("carol")

		// Assert
		assert.Equal(t, 1, rl.Len())
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("it answers 429 with Retry-After once the budget is spent", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(30*time.Second), 1, handler.WithLimiterClock(clk))
		var limited int
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		h := handler.RateLimitMiddleware(rl, func() { limited++ })(next)

		// Act
		first := serve(h, alice.Hex())
		second := serve(h, alice.Hex())

		// Assert
		assert.Equal(t, http.StatusNoContent, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "30", second.Header().Get("Retry-After"))
		assert.Contains(t, second.Body.String(), handler.ErrRateLimited.Error())
		assert.Equal(t, 1, limited)
	})

	t.Run("it treats caller addresses case-insensitively", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Hour), 1, handler.WithLimiterClock(clk))
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		h := handler.RateLimitMiddleware(rl, nil)(next)

		// Act
		serve(h, "0x00000000000000000000000000000000000A11CE")
		rec := serve(h, "0x00000000000000000000000000000000000a11ce")

		// Assert
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("it falls back to the remote host for anonymous requests", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Hour), 1, handler.WithLimiterClock(clk))
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		h := handler.RateLimitMiddleware(rl, nil)(next)

		// Act
		first := serve(h, "")
		second := serve(h, "")

		// Assert
		assert.Equal(t, http.StatusNoContent, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})

	t.Run("it ignores a rotating caller header when keyed on hosts", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := clockwork.NewFakeClockAt(start)
		rl := handler.NewRateLimiter(rate.Every(time.Hour), 1, handler.WithLimiterClock(clk), handler.WithHostKeys())
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		h := handler.RateLimitMiddleware(rl, nil)(next)

		// Act
		first := serve(h, alice.Hex())
		second := serve(h, "0x0000000000000000000000000000000000000b0b")

		// Assert
		assert.Equal(t, http.StatusNoContent, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, 1, rl.Len())
	})
}

func serve(h http.Handler, caller string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/airdrop/claim", nil)
	if caller != "" {
		r.Header.Set(httpkit.CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
