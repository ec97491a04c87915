package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Check(1).Allowed)
	}

	result := rl.Check(1)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestRateLimiter_UsersAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequests: 1, Window: time.Minute})

	assert.True(t, rl.Check(1).Allowed)
	assert.False(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(2).Allowed)
}

func TestRecovery_CapturesPanic(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())

	result := m.Execute(context.Background(), 1, "/stats", func() error {
		panic("boom")
	})

	assert.True(t, result.Recovered)
	assert.NotEmpty(t, result.UserMessage)
}

func TestRecovery_PassesThroughError(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())

	result := m.Execute(context.Background(), 1, "/stats", func() error {
		return assert.AnError
	})

	assert.False(t, result.Recovered)
	assert.ErrorIs(t, result.Err, assert.AnError)
}
