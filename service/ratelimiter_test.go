package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserve(t *testing.T, limiter RateLimiter) bool {
	ok, err := limiter.TryReserve()
	require.NoError(t, err)
	return ok
}

func TestTryReserveUpToLimit(t *testing.T) {
	env := newTestEnv(t)
	limiter := NewRateLimiter(env.kv, env.clock, 5, time.Hour, 20)

	for i := 0; i < 5; i++ {
		require.True(t, reserve(t, limiter), "reservation %d", i+1)
		env.clock.Advance(7 * time.Second)
	}
	assert.False(t, reserve(t, limiter))
}

func TestTryReserveResetsAfterWindow(t *testing.T) {
	env := newTestEnv(t)
	limiter := NewRateLimiter(env.kv, env.clock, 2, time.Hour, 20)

	require.True(t, reserve(t, limiter))
	require.True(t, reserve(t, limiter))
	require.False(t, reserve(t, limiter))

	//the window has to be exceeded, not just reached
	env.clock.Advance(time.Hour)
	require.False(t, reserve(t, limiter))

	env.clock.Advance(time.Second)
	assert.True(t, reserve(t, limiter))
	assert.True(t, reserve(t, limiter))
	assert.False(t, reserve(t, limiter))
}

func TestTryReserveResetsWhenClockGoesBack(t *testing.T) {
	env := newTestEnv(t)
	limiter := NewRateLimiter(env.kv, env.clock, 1, time.Hour, 20)

	require.True(t, reserve(t, limiter))
	require.False(t, reserve(t, limiter))

	env.clock.Set(testNow.Add(-time.Minute))
	assert.True(t, reserve(t, limiter))
}

func TestTryReserveIsDurable(t *testing.T) {
	env := newTestEnv(t)

	require.True(t, reserve(t, NewRateLimiter(env.kv, env.clock, 1, time.Hour, 20)))

	assert.False(t, reserve(t, NewRateLimiter(env.kv, env.clock, 1, time.Hour, 20)))
}

func TestIsWithinSendingHours(t *testing.T) {
	env := newTestEnv(t)
	limiter := NewRateLimiter(env.kv, env.clock, 90, time.Hour, 20)
	at := func(hour, min int) time.Time {
		return time.Date(2024, time.March, 15, hour, min, 0, 0, time.UTC)
	}

	assert.True(t, limiter.IsWithinSendingHours(at(0, 0)))
	assert.True(t, limiter.IsWithinSendingHours(at(19, 0)))
	assert.True(t, limiter.IsWithinSendingHours(at(19, 59)))
	assert.False(t, limiter.IsWithinSendingHours(at(20, 0)))
	assert.False(t, limiter.IsWithinSendingHours(at(21, 0)))
	assert.False(t, limiter.IsWithinSendingHours(at(23, 59)))
}
