package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewRoomRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("u1"), "attempt %d inside the limit", i+1)
	}
	assert.False(t, rl.Allow("u1"), "fourth attempt must be blocked")
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl := NewRoomRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "u2 has their own window")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewRoomRateLimiter(2, 50*time.Millisecond)

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("u1"), "old attempts aged out of the window")
}
