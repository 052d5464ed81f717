// Package ratelimit throttles calls to hosted APIs (LLM, web search).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBackoff applies when a 429 carries no Retry-After value.
const DefaultBackoff = 30 * time.Second

// Config holds the token bucket settings for one upstream.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Limiter is a token bucket with an optional backoff window set after the
// upstream answers 429.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a limiter. A non-positive rate disables throttling.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Backoff pauses all callers for retryAfter.
func (l *Limiter) Backoff(retryAfter time.Duration) {
	if l == nil {
		return
	}
	if retryAfter <= 0 {
		retryAfter = DefaultBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryAt = time.Now().Add(retryAfter)
}

// Observe starts a backoff window when err carries a 429 from the upstream.
func (l *Limiter) Observe(err error) {
	var tooMany *TooManyRequestsError
	if errors.As(err, &tooMany) {
		l.Backoff(tooMany.RetryAfter)
	}
}

// Allow reports whether a request may be sent right now without blocking.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}

// TooManyRequestsError is returned by upstream clients on HTTP 429.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e *TooManyRequestsError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by upstream, retry after %s", e.RetryAfter)
	}
	return "rate limited by upstream"
}

// ParseRetryAfter reads a Retry-After header given in seconds. HTTP dates
// and garbage yield zero.
func ParseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
