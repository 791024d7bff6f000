package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBelowThreshold(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures-1; i++ {
		rl.recordFailure("10.0.0.1")
	}
	blocked, _ := rl.check("10.0.0.1")
	assert.False(t, blocked)
}

func TestRateLimiterLocksAtThreshold(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("10.0.0.1")
	}
	blocked, retryAfter := rl.check("10.0.0.1")
	assert.True(t, blocked)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, baseLockout)
}

func TestRateLimiterBackoffGrows(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures+3; i++ {
		rl.recordFailure("10.0.0.1")
	}
	_, retryAfter := rl.check("10.0.0.1")
	// Three failures past the threshold: 1m << 3 = 8m, minus elapsed time.
	assert.Greater(t, retryAfter, baseLockout*4)
	assert.LessOrEqual(t, retryAfter, baseLockout*8)
}

func TestRateLimiterBackoffIsCapped(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures+20; i++ {
		rl.recordFailure("10.0.0.1")
	}
	_, retryAfter := rl.check("10.0.0.1")
	assert.LessOrEqual(t, retryAfter, maxLockout)
}

func TestRateLimiterSuccessResets(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("10.0.0.1")
	}
	rl.recordSuccess("10.0.0.1")

	blocked, _ := rl.check("10.0.0.1")
	assert.False(t, blocked)
}

func TestRateLimiterTracksPerIP(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("10.0.0.1")
	}
	blocked, _ := rl.check("10.0.0.2")
	assert.False(t, blocked, "a locked neighbour must not affect other addresses")
}

func TestRateLimiterExpiresStaleRecords(t *testing.T) {
	rl := newIPRateLimiter()

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("10.0.0.1")
	}
	rl.mu.Lock()
	rl.attempts["10.0.0.1"].lastFailure = time.Now().Add(-attemptExpiry - time.Minute)
	rl.mu.Unlock()

	blocked, _ := rl.check("10.0.0.1")
	assert.False(t, blocked)
}

func TestWriteRateLimitedSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	writeRateLimited(w, 90*time.Second)

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
}

func TestWriteRateLimitedMinimumOneSecond(t *testing.T) {
	w := httptest.NewRecorder()
	writeRateLimited(w, 10*time.Millisecond)

	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
