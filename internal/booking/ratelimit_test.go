package booking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortalLimiterAllowsUpToLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewPortalLimiter(client, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "parent-1")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should pass", i+1)
	}
	allowed, err := limiter.Allow(ctx, "parent-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Another user has their own window.
	allowed, err = limiter.Allow(ctx, "parent-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPortalLimiterWindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewPortalLimiter(client, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "parent-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "parent-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = limiter.Allow(ctx, "parent-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPortalLimiterNilClientFailsOpen(t *testing.T) {
	limiter := NewPortalLimiter(nil, 1, time.Minute)
	allowed, err := limiter.Allow(context.Background(), "parent-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
