package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*AvailabilityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewAvailabilityCache(client, time.Minute, nil), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	slots := []Slot{{Time: "09:00", Capacity: 5, Occupied: 1, Available: 4}}
	cache.Put(ctx, date, ChannelStaff, slots)

	got := cache.Get(ctx, date, ChannelStaff)
	require.Len(t, got, 1)
	assert.Equal(t, slots[0], got[0])

	// Other channel is a separate entry.
	assert.Nil(t, cache.Get(ctx, date, ChannelPortal))
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	cache.Put(ctx, date, ChannelStaff, []Slot{{Time: "09:00"}})
	cache.Put(ctx, date, ChannelPortal, []Slot{{Time: "09:00"}})
	cache.Invalidate(ctx, date)

	assert.Nil(t, cache.Get(ctx, date, ChannelStaff))
	assert.Nil(t, cache.Get(ctx, date, ChannelPortal))
}

func TestCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	cache.Put(ctx, date, ChannelStaff, []Slot{{Time: "09:00"}})
	mr.FastForward(2 * time.Minute)
	assert.Nil(t, cache.Get(ctx, date, ChannelStaff))
}

func TestCacheDisabledWithoutClient(t *testing.T) {
	cache := NewAvailabilityCache(nil, time.Minute, nil)
	assert.Nil(t, cache.Get(context.Background(), time.Now(), ChannelStaff))
}
