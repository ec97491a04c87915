package middleware

import (
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING MIDDLEWARE
// Per-user sliding window. Keeps a single learner from flooding the bot
// with commands or answer callbacks.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int

	// Window is the sliding window size.
	Window time.Duration

	// CleanupInterval is how often stale user entries are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:     20,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// RetryAfter is how long the user should wait when not allowed.
	RetryAfter time.Duration
}

// RateLimiter enforces a per-user request rate.
type RateLimiter struct {
	config RateLimitConfig

	mu          sync.Mutex
	requests    map[int64][]time.Time
	lastCleanup time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxRequests <= 0 {
		config.MaxRequests = 20
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	return &RateLimiter{
		config:      config,
		requests:    make(map[int64][]time.Time),
		lastCleanup: time.Now(),
	}
}

// Check records a request for the user and reports whether it is allowed.
func (r *RateLimiter) Check(telegramID int64) RateLimitResult {
	now := time.Now()
	cutoff := now.Add(-r.config.Window)

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastCleanup) > r.config.CleanupInterval {
		r.cleanupLocked(cutoff)
		r.lastCleanup = now
	}

	recent := r.requests[telegramID][:0]
	for _, t := range r.requests[telegramID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.config.MaxRequests {
		r.requests[telegramID] = recent
		oldest := recent[0]
		return RateLimitResult{
			Allowed:    false,
			RetryAfter: oldest.Add(r.config.Window).Sub(now),
		}
	}

	r.requests[telegramID] = append(recent, now)
	return RateLimitResult{Allowed: true}
}

// cleanupLocked drops users whose requests are all outside the window.
func (r *RateLimiter) cleanupLocked(cutoff time.Time) {
	for id, times := range r.requests {
		stale := true
		for _, t := range times {
			if t.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(r.requests, id)
		}
	}
}
