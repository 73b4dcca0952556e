package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks per-client request counts over fixed windows. A zero
// limit disables the corresponding window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int

	clients map[string]*clientWindow

	// now is swappable for tests.
	now func() time.Time
}

// clientWindow tracks usage for a single client.
type clientWindow struct {
	minuteCount int
	minuteStart time.Time

	hourCount int
	hourStart time.Time
}

// NewRateLimiter creates a rate limiter with the given per-window limits.
func NewRateLimiter(requestsPerMinute, requestsPerHour int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		clients:           make(map[string]*clientWindow),
		now:               time.Now,
	}
}

// Allow records a request for the client and reports whether it stays
// within the limits. Denied requests are not counted.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientID]
	if !ok {
		w = &clientWindow{minuteStart: now, hourStart: now}
		rl.clients[clientID] = w
	}

	if now.Sub(w.minuteStart) >= time.Minute {
		w.minuteCount = 0
		w.minuteStart = now
	}
	if now.Sub(w.hourStart) >= time.Hour {
		w.hourCount = 0
		w.hourStart = now
	}

	if rl.requestsPerMinute > 0 && w.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{
			Scope:      "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(w.minuteStart),
		}
	}
	if rl.requestsPerHour > 0 && w.hourCount >= rl.requestsPerHour {
		return &RateLimitError{
			Scope:      "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(w.hourStart),
		}
	}

	w.minuteCount++
	w.hourCount++
	return nil
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Scope      string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Scope, e.Limit, e.RetryAfter)
}
