package handler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/screwyprof/airdrop/pkg/clock"
	"github.com/screwyprof/airdrop/pkg/httpkit"
	"github.com/screwyprof/airdrop/web/api"
)

// ErrRateLimited is returned when a caller exceeds its request budget
var ErrRateLimited = errors.New("rate limit exceeded")

const defaultIdleTimeout = 5 * time.Minute

// RateLimiter provides per-caller rate limiting for mutating requests.
// Idle callers are swept on demand, so no background goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	idle      time.Duration
	clock     clock.Clock
	lastSweep time.Time
	hostKeys  bool
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterOption configures a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithLimiterClock sets the time source, mostly for tests
func WithLimiterClock(c clock.Clock) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.clock = c
	}
}

// WithIdleTimeout sets how long an unused caller entry is kept
func WithIdleTimeout(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.idle = d
	}
}

// WithHostKeys keys every request on its remote host and ignores the caller header.
// Use it when no trusted gateway sets the header in front of the service.
func WithHostKeys() RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.hostKeys = true
	}
}

// NewRateLimiter creates a rate limiter with the specified rate and burst size.
// For example, NewRateLimiter(rate.Every(time.Minute/60), 10) allows 60 requests/minute with burst of 10.
func NewRateLimiter(r rate.Limit, burst int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     r,
		burst:    burst,
		idle:     defaultIdleTimeout,
		clock:    clock.SystemClock{},
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.lastSweep = rl.clock.Now()
	return rl
}

// AllowWithRetry checks if a request is allowed and returns time until next token if not
func (rl *RateLimiter) AllowWithRetry(key string) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	rl.sweep(now)

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}

	return true, 0
}

// Len returns the number of tracked callers
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// sweep drops idle entries at most once per idle period
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	cutoff := now.Add(-rl.idle)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// RateLimitMiddleware rejects requests over the caller's budget with 429 and Retry-After.
// onLimited, when set, is called for each rejected request.
func RateLimitMiddleware(limiter *RateLimiter, onLimited func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.AllowWithRetry(limiter.key(r))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			if onLimited != nil {
				onLimited()
			}

			retrySeconds := max(1, int(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
			err := fmt.Errorf("%w: retry in %d seconds", ErrRateLimited, retrySeconds)
			httpkit.JsonError(api.TooManyRequests(err))(w, r)
		})
	}
}

// key identifies the caller, falling back to the remote host for anonymous requests.
// Caller keys assume a trusted gateway sets the header: a client rotating it
// directly gets a fresh budget per value. WithHostKeys ignores the header.
func (rl *RateLimiter) key(r *http.Request) string {
	if caller := r.Header.Get(httpkit.CallerHeader); caller != "" && !rl.hostKeys {
		return "caller:" + strings.ToLower(caller)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
